package detection

import (
	"github.com/ironsheep/card-scanner/internal/imaging"
)

// Contour is the traced outer boundary of one connected group of edge pixels.
type Contour struct {
	// Points lists boundary pixels in clockwise order (image coordinates),
	// starting at the topmost-leftmost pixel of the component.
	Points []Point

	// Pixels is the number of edge pixels in the component.
	Pixels int
}

// Area returns the shoelace area enclosed by the boundary.
func (c Contour) Area() float64 {
	return PolygonArea(c.Points)
}

// Moore neighbourhood in clockwise order for y pointing down, starting west.
var mooreDirs = [8]Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

// mooreIndex maps an offset (dx+1, dy+1) to its index in mooreDirs.
var mooreIndex = [3][3]int{
	{1, 0, 7}, // dx = -1: dy = -1, 0, 1
	{2, -1, 6},
	{3, 4, 5},
}

// FindContours returns the outer boundary of every external component of the
// edge map, in raster order of each component's first pixel.
//
// # Algorithm
//
//  1. Flood the background from the image border with 4-connectivity. Every
//     non-edge pixel reached is "outside".
//  2. Group edge pixels into 8-connected components (iterative flood fill).
//  3. A component is external when it touches the image border or an
//     outside pixel. Components enclosed by another ring, such as text
//     printed on a card, are skipped.
//  4. Trace the outer boundary of each external component with Moore
//     neighbour tracing, starting from its topmost-leftmost pixel.
func FindContours(edges *imaging.EdgeMap) []Contour {
	if edges == nil || edges.Width == 0 || edges.Height == 0 {
		return nil
	}
	width, height := edges.Width, edges.Height
	outside := floodOutside(edges)

	visited := make([]bool, width*height)
	stack := make([]int, 0, 256)
	contours := make([]Contour, 0)

	for i, v := range edges.Pix {
		if v == 0 || visited[i] {
			continue
		}

		external := false
		pixels := 0
		visited[i] = true
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			pixels++
			px, py := p%width, p/width

			if px == 0 || py == 0 || px == width-1 || py == height-1 {
				external = true
			}

			for dy := -1; dy <= 1; dy++ {
				ny := py + dy
				if ny < 0 || ny >= height {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := px + dx
					if nx < 0 || nx >= width || (dx == 0 && dy == 0) {
						continue
					}
					n := ny*width + nx
					if edges.Pix[n] == 0 {
						if (dx == 0 || dy == 0) && outside[n] {
							external = true
						}
						continue
					}
					if !visited[n] {
						visited[n] = true
						stack = append(stack, n)
					}
				}
			}
		}

		if !external {
			continue
		}
		start := Point{X: i % width, Y: i / width}
		contours = append(contours, Contour{
			Points: traceBoundary(edges, start, pixels),
			Pixels: pixels,
		})
	}
	return contours
}

// floodOutside marks the background pixels 4-connected to the image border.
func floodOutside(edges *imaging.EdgeMap) []bool {
	width, height := edges.Width, edges.Height
	outside := make([]bool, width*height)
	stack := make([]int, 0, 2*(width+height))

	seed := func(x, y int) {
		i := y*width + x
		if edges.Pix[i] == 0 && !outside[i] {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for x := 0; x < width; x++ {
		seed(x, 0)
		seed(x, height-1)
	}
	for y := 0; y < height; y++ {
		seed(0, y)
		seed(width-1, y)
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		px, py := p%width, p/width
		if px > 0 {
			seed(px-1, py)
		}
		if px < width-1 {
			seed(px+1, py)
		}
		if py > 0 {
			seed(px, py-1)
		}
		if py < height-1 {
			seed(px, py+1)
		}
	}
	return outside
}

// traceBoundary walks the outer boundary of the component containing start.
//
// start must be the first pixel of its component in raster order, so its
// west neighbour is background and serves as the initial backtrack. Tracing
// stops when the walk is back at start and about to repeat its first step.
func traceBoundary(edges *imaging.EdgeMap, start Point, pixels int) []Point {
	boundary := []Point{start}

	cur := start
	back := 0 // direction from cur to the backtrack pixel
	var first Point
	limit := 4*pixels + 8

	for step := 0; step < limit; step++ {
		next, nextBack, ok := mooreStep(edges, cur, back)
		if !ok {
			return boundary // isolated pixel
		}
		if step == 0 {
			first = next
		} else if cur == start && next == first {
			break
		}
		cur, back = next, nextBack
		boundary = append(boundary, cur)
	}

	// The walk ends on start; drop the duplicate.
	if len(boundary) > 1 && boundary[len(boundary)-1] == start {
		boundary = boundary[:len(boundary)-1]
	}
	return boundary
}

// mooreStep scans the neighbours of cur clockwise from the backtrack
// direction and returns the first edge pixel with its new backtrack
// direction.
func mooreStep(edges *imaging.EdgeMap, cur Point, back int) (Point, int, bool) {
	prev := Point{cur.X + mooreDirs[back].X, cur.Y + mooreDirs[back].Y}
	for k := 1; k <= 8; k++ {
		d := mooreDirs[(back+k)%8]
		p := Point{cur.X + d.X, cur.Y + d.Y}
		if edges.At(p.X, p.Y) {
			nb := mooreIndex[prev.X-p.X+1][prev.Y-p.Y+1]
			return p, nb, true
		}
		prev = p
	}
	return Point{}, 0, false
}
