package server

import (
	"bufio"
	"context"

	"github.com/workstalk/workstalk/internal/protocol"
	logpkg "github.com/workstalk/workstalk/pkg/log"
)

// dispatch executes one parsed command against the engine and writes its
// reply. It returns true when the connection should close (quit, or a
// canceled reserve signaling the connection is going away).
func (s *Server) dispatch(ctx context.Context, connID uint64, cmd *protocol.Command, bw *bufio.Writer, logger logpkg.Logger) bool {
	switch cmd.Kind {
	case protocol.KindPut:
		j, buried, err := s.eng.Put(connID, cmd.Priority, cmd.Delay, cmd.TTR, cmd.Body)
		if err != nil {
			_ = protocol.WriteServerError(bw, protocol.ErrDraining())
			return false
		}
		if buried {
			_ = protocol.WriteBuriedWithID(bw, j.ID)
		} else {
			_ = protocol.WriteInserted(bw, j.ID)
		}

	case protocol.KindReserve:
		j, err := s.eng.Reserve(ctx, connID)
		if err != nil {
			return true
		}
		_ = protocol.WriteReservedJob(bw, j)

	case protocol.KindDelete:
		if s.eng.Delete(connID, cmd.ID) {
			_ = protocol.WriteDeleted(bw)
		} else {
			_ = protocol.WriteNotFound(bw)
		}

	case protocol.KindRelease:
		buried, found := s.eng.Release(connID, cmd.ID, cmd.Priority, cmd.Delay)
		switch {
		case !found:
			_ = protocol.WriteNotFound(bw)
		case buried:
			_ = protocol.WriteBuried(bw)
		default:
			_ = protocol.WriteReleased(bw)
		}

	case protocol.KindBury:
		if s.eng.Bury(connID, cmd.ID, cmd.Priority) {
			_ = protocol.WriteBuried(bw)
		} else {
			_ = protocol.WriteNotFound(bw)
		}

	case protocol.KindTouch:
		if s.eng.Touch(connID, cmd.ID) {
			_ = protocol.WriteTouched(bw)
		} else {
			_ = protocol.WriteNotFound(bw)
		}

	case protocol.KindKick:
		_ = protocol.WriteKicked(bw, s.eng.Kick(cmd.KickN))

	case protocol.KindPeek:
		if j, ok := s.eng.PeekAny(); ok {
			_ = protocol.WriteFoundJob(bw, j)
		} else {
			_ = protocol.WriteNotFound(bw)
		}

	case protocol.KindPeekID:
		if j, ok := s.eng.PeekID(cmd.ID); ok {
			_ = protocol.WriteFoundJob(bw, j)
		} else {
			_ = protocol.WriteNotFound(bw)
		}

	case protocol.KindStats:
		_ = protocol.WriteOKBody(bw, s.eng.StatsText())

	case protocol.KindStatsJob:
		if body, ok := s.eng.StatsJob(cmd.ID); ok {
			_ = protocol.WriteOKBody(bw, body)
		} else {
			_ = protocol.WriteNotFound(bw)
		}

	case protocol.KindQuit:
		return true

	default:
		logger.Error("unhandled command kind", logpkg.Int("kind", int(cmd.Kind)))
	}
	return false
}
