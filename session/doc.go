// Package session keeps the conversational context of one caller: which transcript is
// being discussed, and the analysis, plan, workflows and customer that hang off it.
//
// A Session stores ids only. SetActive derives them from the graph in one traversal,
// Resolve turns phrases such as "the plan", "this call" or "the last call" into a
// concrete Reference, and every action is appended to an in-memory flow log readable
// through Summary.
package session
