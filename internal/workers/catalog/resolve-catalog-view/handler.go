// internal/workers/catalog/resolve-catalog-view/handler.go
package resolvecatalogview

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"catalog-bff/internal/aggregator"
	"catalog-bff/internal/common/errors"
	"catalog-bff/internal/common/logger"
	"catalog-bff/internal/common/metrics"
	"catalog-bff/internal/common/validation"
	"catalog-bff/internal/session"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "resolve-catalog-view"

	// reportTimeout bounds the complete/fail/throw call, which must still go
	// out after the job's own timeout has fired.
	reportTimeout = 10 * time.Second
)

var schema = validation.MustCompile(inputSchema)

type Handler struct {
	config     *Config
	agg        *aggregator.Aggregator
	sessions   *session.Manager
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, agg *aggregator.Aggregator, sessions *session.Manager, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		agg:        agg,
		sessions:   sessions,
		errHandler: errors.NewErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	reportCtx, cancelReport := context.WithTimeout(context.Background(), reportTimeout)
	defer cancelReport()

	input, err := ParseInput(job.Variables)
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if err == nil {
			return h.completeJob(reportCtx, client, job, output)
		}
	}

	code := string(errors.ErrCodeInternal)
	if stdErr, ok := errors.AsStandardError(err); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errHandler.HandleJobError(reportCtx, client, job, err)
	return err
}

// ParseInput validates and decodes job variables.
func ParseInput(variables string) (*Input, error) {
	if strings.TrimSpace(variables) == "" {
		variables = "{}"
	}
	if res := schema.Validate([]byte(variables)); !res.Valid {
		return nil, errors.NewInvalidJobInputError(res.Summary())
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidJobInputError(err.Error())
	}
	return &input, nil
}

// Execute runs one aggregation cycle for the job's session and returns the
// tier-filtered view.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	sid := input.SessionID
	if sid == "" {
		sid = h.sessions.NewSessionID()
	}
	sess := h.sessions.Establish(sid, credentials(input))

	view := aggregator.NewView(h.agg, sess)
	defer view.Close()

	if err := view.Load(ctx); err != nil {
		return nil, err
	}
	res, err := view.Result()
	if err != nil {
		return nil, err
	}

	return &Output{
		SessionID:   sess.ID(),
		Collections: view.VisibleCollections(),
		Plans:       res.Plans,
		User:        res.User,
		ViewerTier:  sess.Tier(),
		Degraded:    res.Degraded,
		CycleID:     res.CycleID,
	}, nil
}

func credentials(input *Input) session.Credentials {
	names := make([]string, 0, len(input.SessionCookies))
	for name := range input.SessionCookies {
		names = append(names, name)
	}
	sort.Strings(names)

	cookies := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		cookies = append(cookies, &http.Cookie{Name: name, Value: input.SessionCookies[name]})
	}
	return session.Credentials{Cookies: cookies, Authorization: input.Authorization}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":      job.Key,
		"cycleId":     output.CycleID,
		"collections": len(output.Collections),
	})
	return nil
}
