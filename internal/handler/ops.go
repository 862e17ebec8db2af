package handler

import (
	"net/http"

	"pharmapos/internal/apierror"
	"pharmapos/internal/service"
	"pharmapos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const defaultDLQLimit = 50

// dlqQueues maps the public queue names to their Redis lists.
var dlqQueues = map[string]string{
	"receipts": worker.QueueReceipts,
	"alerts":   worker.QueueAlerts,
}

// OpsHandler exposes background-job state to administrators.
type OpsHandler struct{ rdb *redis.Client }

func NewOpsHandler(rdb *redis.Client) *OpsHandler { return &OpsHandler{rdb: rdb} }

// DeadLetters lists the newest dead-lettered jobs of one queue.
func (h *OpsHandler) DeadLetters(c *gin.Context) {
	queue, ok := dlqQueues[c.Param("queue")]
	if !ok {
		c.JSON(http.StatusNotFound, apierror.WithKind(string(service.KindNotFound), "Unknown queue"))
		return
	}
	limit, ok := queryInt(c, "limit", defaultDLQLimit)
	if !ok {
		return
	}
	if limit == 0 {
		limit = defaultDLQLimit
	}

	ctx := c.Request.Context()
	total, err := worker.DLQLength(ctx, h.rdb, queue)
	if err != nil {
		respondError(c, err)
		return
	}
	entries, err := worker.ReadDLQ(ctx, h.rdb, queue, int64(limit))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": queue, "total": total, "data": entries})
}
