package dashboard

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jobops/jobops/internal/notify"
	"github.com/jobops/jobops/internal/store"
	"github.com/jobops/jobops/internal/syncer"
	"github.com/jobops/jobops/internal/types"
)

// JobUpdateData describes one record change.
type JobUpdateData struct {
	JobID   string       `json:"jobId"`
	Action  string       `json:"action"` // create, update, delete
	Status  types.Status `json:"status,omitempty"`
	Company string       `json:"company,omitempty"`
	Role    string       `json:"role,omitempty"`
}

// SyncCompleteData describes a finished relay.
type SyncCompleteData struct {
	Action string `json:"action"`
	JobID  string `json:"jobId"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Broadcaster sends feed messages. *Server implements it.
type Broadcaster interface {
	Broadcast(msg Message)
}

// Handler turns store mutations, notifications and relay results into
// feed messages. It implements store.Listener.
type Handler struct {
	out    Broadcaster
	logger *zap.Logger
}

// NewHandler creates a Handler broadcasting to out.
func NewHandler(out Broadcaster, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{out: out, logger: logger}
}

// Mutated implements store.Listener. Every mutation is followed by fresh
// stats computed from the post-mutation snapshot.
func (h *Handler) Mutated(m store.Mutation) {
	if m.Action != store.ActionLoad {
		data := JobUpdateData{JobID: m.ID, Action: string(m.Action)}
		if m.Action != store.ActionDelete {
			data.JobID = m.Job.ID
			data.Status = m.Job.Status
			data.Company = m.Job.Company
			data.Role = m.Job.Role
		}
		h.send(MessageTypeJobUpdate, data)
	}
	h.send(MessageTypeStats, store.ComputeStats(m.Snapshot))
}

// Notified forwards a notification. Pass it to notify.Center.Subscribe.
func (h *Handler) Notified(n notify.Notification) {
	h.send(MessageTypeNotification, n)
}

// RelayDone reports a finished relay. Pass it to syncer.WithRelayHook.
func (h *Handler) RelayDone(r syncer.RelayResult) {
	data := SyncCompleteData{Action: r.Action, JobID: r.ID, OK: r.Err == nil}
	if r.Err != nil {
		data.Error = r.Err.Error()
	}
	h.send(MessageTypeSyncComplete, data)
}

// StatsMessage builds a stats message, for use as the server's welcome.
func StatsMessage(st store.Stats) Message {
	data, _ := json.Marshal(st)
	return Message{Type: MessageTypeStats, Timestamp: time.Now(), Data: data}
}

func (h *Handler) send(t MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to marshal feed data", zap.String("type", string(t)), zap.Error(err))
		return
	}
	h.out.Broadcast(Message{Type: t, Timestamp: time.Now(), Data: data})
}
