package protocol

import (
	"bufio"
	"fmt"

	"github.com/workstalk/workstalk/internal/job"
)

func writeLine(w *bufio.Writer, s string) error {
	if _, err := w.WriteString(s); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

func WriteInserted(w *bufio.Writer, id uint64) error {
	return writeLine(w, fmt.Sprintf("INSERTED %d", id))
}

// WriteBuriedWithID is put's overflow reply, which carries the id (spec
// §4.5 put: "respond BURIED <id>").
func WriteBuriedWithID(w *bufio.Writer, id uint64) error {
	return writeLine(w, fmt.Sprintf("BURIED %d", id))
}

// WriteBuried is bury's success reply and release's overflow reply; neither
// carries an id.
func WriteBuried(w *bufio.Writer) error {
	return writeLine(w, "BURIED")
}

func WriteDeleted(w *bufio.Writer) error  { return writeLine(w, "DELETED") }
func WriteReleased(w *bufio.Writer) error { return writeLine(w, "RELEASED") }
func WriteNotFound(w *bufio.Writer) error { return writeLine(w, "NOT_FOUND") }
func WriteTouched(w *bufio.Writer) error  { return writeLine(w, "TOUCHED") }

func WriteKicked(w *bufio.Writer, n uint32) error {
	return writeLine(w, fmt.Sprintf("KICKED %d", n))
}

func writeJobReply(w *bufio.Writer, word string, j *job.Job) error {
	if _, err := fmt.Fprintf(w, "%s %d %d %d\r\n", word, j.ID, j.Priority, len(j.Body)); err != nil {
		return err
	}
	if _, err := w.Write(j.Body); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

// WriteReservedJob renders reserve's match reply: "RESERVED <id> <pri>
// <bytes>\r\n<body>\r\n".
func WriteReservedJob(w *bufio.Writer, j *job.Job) error {
	return writeJobReply(w, "RESERVED", j)
}

// WriteFoundJob renders peek's reply: "FOUND <id> <pri> <bytes>\r\n<body>\r\n".
func WriteFoundJob(w *bufio.Writer, j *job.Job) error {
	return writeJobReply(w, "FOUND", j)
}

// WriteOKBody renders stats/stats-job's reply: "OK <bytes>\r\n<body>\r\n".
func WriteOKBody(w *bufio.Writer, body []byte) error {
	if _, err := fmt.Fprintf(w, "OK %d\r\n", len(body)); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

func WriteClientError(w *bufio.Writer, e *ClientError) error {
	return writeLine(w, e.Error())
}

func WriteServerError(w *bufio.Writer, e *ServerError) error {
	return writeLine(w, e.Error())
}
