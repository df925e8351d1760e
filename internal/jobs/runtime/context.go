package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/services"
	"github.com/aulanet/aulanet-backend/internal/types"
)

const retryBaseDelay = 30 * time.Second

// Context is the execution handle for one claimed job run. It wraps the
// job_run row, the notifier and the only sanctioned ways to report progress
// or terminate execution. Handlers never write job_run directly.
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	Notify  services.JobNotifier
	payload map[string]any
}

// NewContext eagerly decodes the payload JSON so handlers can access inputs
// via Payload()/PayloadUUID(). A malformed payload decodes to an empty map;
// handlers validate the fields they require.
func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, notify services.JobNotifier) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
	}
	_ = c.decodePayload()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// PayloadUUID reads a payload field and parses it as a UUID. Missing or
// unparseable values return (uuid.Nil, false).
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// PayloadString reads a payload field as a string, "" when missing.
func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Progress publishes a non-terminal update: percentage plus heartbeat into
// the row, and a notifier event.
func (c *Context) Progress(pct int, msg string) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, map[string]interface{}{
		"progress":     pct,
		"heartbeat_at": now,
		"updated_at":   now,
	})
	c.Job.Progress = pct
	c.Job.HeartbeatAt = &now
	if c.Notify != nil {
		c.Notify.JobProgress(c.Job.OwnerUserID, c.Job, pct, msg)
	}
}

// Fail marks the run FAILED and clears the lock. Runs with attempts left get
// a run_after backoff of 30 s doubled per attempt; exhausted runs stay FAILED
// for good.
func (c *Context) Fail(err error) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	updates := map[string]interface{}{
		"status":        types.JobStatusFailed,
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	}
	if c.Job.Attempts < c.Job.MaxAttempts {
		runAfter := now.Add(RetryDelay(c.Job.Attempts))
		updates["run_after"] = runAfter
		c.Job.RunAfter = &runAfter
	}
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, updates)

	c.Job.Status = types.JobStatusFailed
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.LockedAt = nil

	if c.Notify != nil {
		c.Notify.JobFailed(c.Job.OwnerUserID, c.Job, msg)
	}
}

// Succeed marks the run SUCCEEDED with an optional result payload.
func (c *Context) Succeed(result map[string]any) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	updates := map[string]interface{}{
		"status":     types.JobStatusSucceeded,
		"progress":   100,
		"error":      "",
		"locked_at":  nil,
		"updated_at": now,
	}
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			updates["result"] = datatypes.JSON(b)
			c.Job.Result = datatypes.JSON(b)
		}
	}
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, updates)

	c.Job.Status = types.JobStatusSucceeded
	c.Job.Progress = 100
	c.Job.Error = ""
	c.Job.LockedAt = nil

	if c.Notify != nil {
		c.Notify.JobDone(c.Job.OwnerUserID, c.Job)
	}
}

// RetryDelay doubles the base delay per completed attempt.
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := retryBaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}
