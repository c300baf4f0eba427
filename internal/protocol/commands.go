// Package protocol implements the line-oriented text wire format described
// in spec §6: command parsing, job-body framing, and reply rendering. It has
// no knowledge of queues or reservations — it only turns bytes into Commands
// and Commands' results back into bytes.
package protocol

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Kind identifies which command a Command carries.
type Kind int

const (
	KindPut Kind = iota
	KindReserve
	KindDelete
	KindRelease
	KindBury
	KindTouch
	KindKick
	KindPeek
	KindPeekID
	KindStats
	KindStatsJob
	KindQuit
)

// Command is a parsed client request. Not every field is meaningful for
// every Kind — the comment on each field lists the commands that set it.
type Command struct {
	Kind Kind

	ID uint64 // delete, release, bury, touch, peek <id>, stats <id>

	Priority uint32 // put, release, bury
	Delay    uint32 // put, release
	TTR      uint32 // put
	Body     []byte // put, excludes the trailing CRLF

	KickN uint32 // kick
}

// ReadCommand reads and parses exactly one command line (and, for put, its
// body) from br. maxBody bounds the accepted job body size (spec §4.5,
// default 65535).
//
// A non-nil *ClientError return means the caller must write the error reply
// and then close the connection (spec §7: the parser cannot resynchronize
// after malformed input). Any other non-nil error is a transport-level
// failure (including io.EOF on graceful close) and the caller should simply
// close without replying.
func ReadCommand(br *bufio.Reader, maxBody int) (*Command, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errBadFormat()
	}

	switch fields[0] {
	case "put":
		return parsePut(br, fields, maxBody)
	case "reserve":
		if len(fields) != 1 {
			return nil, errBadFormat()
		}
		return &Command{Kind: KindReserve}, nil
	case "delete":
		id, err := parseSingleID(fields)
		if err != nil {
			return nil, err
		}
		return &Command{Kind: KindDelete, ID: id}, nil
	case "release":
		return parseRelease(fields)
	case "bury":
		return parseBury(fields)
	case "touch":
		id, err := parseSingleID(fields)
		if err != nil {
			return nil, err
		}
		return &Command{Kind: KindTouch, ID: id}, nil
	case "kick":
		return parseKick(fields)
	case "peek":
		return parsePeek(fields)
	case "stats":
		return parseStats(fields)
	case "quit":
		if len(fields) != 1 {
			return nil, errBadFormat()
		}
		return &Command{Kind: KindQuit}, nil
	default:
		return nil, errUnknownCommand()
	}
}

// readLine reads one CRLF-terminated line, stripped of its terminator.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(line, "\r\n") {
		return "", errBadFormat()
	}
	return strings.TrimSuffix(line, "\r\n"), nil
}

func parseUint32(s string) (uint32, bool) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

func parseUint64(s string) (uint64, bool) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseSingleID(fields []string) (uint64, error) {
	if len(fields) != 2 {
		return 0, errBadFormat()
	}
	id, ok := parseUint64(fields[1])
	if !ok {
		return 0, errBadFormat()
	}
	return id, nil
}

func parsePut(br *bufio.Reader, fields []string, maxBody int) (*Command, error) {
	if len(fields) != 5 {
		return nil, errBadFormat()
	}
	pri, ok1 := parseUint32(fields[1])
	delay, ok2 := parseUint32(fields[2])
	ttr, ok3 := parseUint32(fields[3])
	nbytes, ok4 := parseUint64(fields[4])
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, errBadFormat()
	}
	if nbytes > uint64(maxBody) {
		return nil, errJobTooBig()
	}

	framed := make([]byte, nbytes+2)
	if _, err := io.ReadFull(br, framed); err != nil {
		return nil, err
	}
	if framed[len(framed)-2] != '\r' || framed[len(framed)-1] != '\n' {
		return nil, errExpectedCRLF()
	}

	return &Command{
		Kind:     KindPut,
		Priority: pri,
		Delay:    delay,
		TTR:      ttr,
		Body:     framed[:len(framed)-2],
	}, nil
}

func parseRelease(fields []string) (*Command, error) {
	if len(fields) != 4 {
		return nil, errBadFormat()
	}
	id, ok1 := parseUint64(fields[1])
	pri, ok2 := parseUint32(fields[2])
	delay, ok3 := parseUint32(fields[3])
	if !ok1 || !ok2 || !ok3 {
		return nil, errBadFormat()
	}
	return &Command{Kind: KindRelease, ID: id, Priority: pri, Delay: delay}, nil
}

func parseBury(fields []string) (*Command, error) {
	if len(fields) != 3 {
		return nil, errBadFormat()
	}
	id, ok1 := parseUint64(fields[1])
	pri, ok2 := parseUint32(fields[2])
	if !ok1 || !ok2 {
		return nil, errBadFormat()
	}
	return &Command{Kind: KindBury, ID: id, Priority: pri}, nil
}

func parseKick(fields []string) (*Command, error) {
	if len(fields) != 2 {
		return nil, errBadFormat()
	}
	n, ok := parseUint32(fields[1])
	if !ok {
		return nil, errBadFormat()
	}
	return &Command{Kind: KindKick, KickN: n}, nil
}

func parsePeek(fields []string) (*Command, error) {
	switch len(fields) {
	case 1:
		return &Command{Kind: KindPeek}, nil
	case 2:
		id, ok := parseUint64(fields[1])
		if !ok {
			return nil, errBadFormat()
		}
		return &Command{Kind: KindPeekID, ID: id}, nil
	default:
		return nil, errBadFormat()
	}
}

func parseStats(fields []string) (*Command, error) {
	switch len(fields) {
	case 1:
		return &Command{Kind: KindStats}, nil
	case 2:
		id, ok := parseUint64(fields[1])
		if !ok {
			return nil, errBadFormat()
		}
		return &Command{Kind: KindStatsJob, ID: id}, nil
	default:
		return nil, errBadFormat()
	}
}
