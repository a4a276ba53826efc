// Package memory manages session conversation history with size-triggered
// background summarization. The persisted log in the ChatStore is the source
// of truth and always keeps full raw history; summarization only compacts the
// in-memory view handed to the model.
//
// The in-memory view is eventually consistent: between the append that
// crosses the threshold and the completion of the summarization pass, readers
// may observe either the raw or the compacted view.
package memory
