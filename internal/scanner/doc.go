// Package scanner ties the capture stages together.
//
// A Pipeline turns one frame and the previous State into the next State and
// an Event; it has no memory of its own. A Session owns the single live
// State of a capture attempt, pulls frames from a Source, applies timeouts
// and reset requests between frames and reports to a Sink:
//
//	frame -> Preprocess -> ExtractCandidate -> Evaluate -> (locked) OrderCorners -> Rectify
//
// One session produces at most one capture. Call Reset (or WaitReset and Run
// again) to scan another card.
package scanner
