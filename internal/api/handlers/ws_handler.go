package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/yoockh/yoocare/internal/services"
	"github.com/yoockh/yoocare/internal/utils"
)

type WSHandler struct {
	jobs     services.IntakeJobService
	redis    *redis.Client
	upgrader websocket.Upgrader
}

func NewWSHandler(jobs services.IntakeJobService, rdb *redis.Client, allowedOrigins []string) *WSHandler {
	allow := map[string]struct{}{}
	for _, o := range allowedOrigins {
		allow[o] = struct{}{}
	}
	return &WSHandler{
		jobs:  jobs,
		redis: rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allow) == 0 {
					return true
				}
				_, ok := allow[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

// IntakeWS streams stage updates of one async intake job until it finishes.
func (h *WSHandler) IntakeWS(c *gin.Context) {
	patientID, ok := requireUserID(c)
	if !ok {
		return
	}

	jobID := c.Param("job_id")
	if jobID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.IntakeWS", "missing job_id", nil))
		return
	}

	// ownership check happens before the upgrade
	job, err := h.jobs.Get(c.Request.Context(), jobID, patientID)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// subscribe first so no update between snapshot and subscription is lost
	pubsub := h.redis.Subscribe(ctx, services.IntakeStatusChannel(jobID))
	defer pubsub.Close()

	snapshot, _ := json.Marshal(services.IntakeStatus{
		Type:   "status",
		JobID:  job.JobID,
		Stage:  job.Stage,
		Status: job.Status,
		Code:   job.ErrorCode,
	})
	if err := wc.writeText(snapshot); err != nil {
		return
	}
	if job.Status == services.JobDone || job.Status == services.JobFailed {
		return
	}

	// reader only detects client close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		m, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return
		}
		if werr := wc.writeText([]byte(m.Payload)); werr != nil {
			return
		}
		var st services.IntakeStatus
		if json.Unmarshal([]byte(m.Payload), &st) == nil && st.Terminal() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), time.Now().Add(time.Second))
			return
		}
	}
}
