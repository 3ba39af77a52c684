// Package relay forwards a live text stream to one chat.
//
// Input is cut into segments (Segmenter), queued (queue), and drained by a
// single background worker (sender) that is woken by ordered signals. The
// worker merges consecutive lines into one message, sends at most one network
// request per interval, and turns carriage-return lines into edits of the last
// line of the previous message, so progress bars update in place.
//
//	stdin -> Segmenter -> queue (+SignalNewElement) -> sender -> kit.Sender
package relay
