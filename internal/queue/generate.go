package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"planvision/internal/db"
	"planvision/internal/storage"
	"planvision/internal/util"
	"planvision/pkg/ai"
	"planvision/pkg/leaselock"
	"planvision/pkg/logger"
	"planvision/pkg/pdf"
	"planvision/pkg/plan"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskMsg is the payload on both work queues. Everything else about the
// task lives in its database row.
type TaskMsg struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// preparePages downloads the task's PDF, renders every page and uploads the
// rasters so classifications can reference them.
func preparePages(
	ctx context.Context,
	s3Client *awss3.Client,
	q *db.Queries,
	task *db.GenerationTask,
) ([]plan.PageImage, error) {
	input, err := util.RetryWithContext(ctx, 3, func(ctx context.Context) ([]byte, error) {
		return storage.GetFile(ctx, s3Client, task.PdfKey)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download source PDF: %w", err)
	}

	if count, err := pdf.CountPages(input); err != nil {
		logger.Warn("[Queue] Page count unavailable", "task_id", task.ID, "err", err)
	} else if err := q.SetTaskPageCount(ctx, task.ID, count); err != nil {
		logger.Warn("[Queue] Failed to store page count", "task_id", task.ID, "err", err)
	}

	rendered, err := pdf.RenderPages(ctx, input, pdf.OptionsFromEnv())
	if err != nil {
		return nil, fmt.Errorf("failed to render PDF pages: %w", err)
	}
	if len(rendered) == 0 {
		return nil, errors.New("document rendered to zero pages")
	}

	pages := make([]plan.PageImage, 0, len(rendered))
	for i, data := range rendered {
		key := fmt.Sprintf("tasks/%s/pages/%d.png", task.ID, i+1)
		err := util.RetryErrWithContext(ctx, 3, func(ctx context.Context) error {
			return storage.PutBytes(ctx, s3Client, key, "image/png", data)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload page %d: %w", i+1, err)
		}
		pages = append(pages, plan.PageImage{
			Number:   i + 1,
			ImageKey: key,
			FullRes:  data,
		})
	}

	return pages, nil
}

// taskLeaseTTL bounds how long a dead worker blocks its task. The renew
// loop keeps a live worker's lease well beyond this.
const taskLeaseTTL = 2 * time.Minute

// startTask takes the task lease, claims the row and arranges failure
// marking. The returned finish func must be deferred with a pointer to the
// named error.
func startTask(ctx context.Context, conn *pgxpool.Pool, q *db.Queries, taskID string) (*db.GenerationTask, func(*error), error) {
	lease, err := leaselock.New(conn).Acquire(ctx, "task:"+taskID, leaselock.Options{TTL: taskLeaseTTL})
	if err != nil {
		if errors.Is(err, leaselock.ErrBusy) {
			logger.Info("[Queue] Skipping task: another worker holds its lease", "task_id", taskID)
			return nil, nil, nil
		}
		return nil, nil, err
	}

	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		_ = lease.Release(context.Background())
		return nil, nil, err
	}

	if err := q.TryStartTask(ctx, taskID); err != nil {
		_ = lease.Release(context.Background())
		if errors.Is(err, db.ErrTaskNotFound) {
			logger.Info("[Queue] Skipping task: already claimed or finished", "task_id", taskID)
			return nil, nil, nil
		}
		return nil, nil, err
	}

	finish := func(errp *error) {
		defer func() {
			if releaseErr := lease.Release(context.Background()); releaseErr != nil {
				logger.Warn("[Queue] Failed to release task lease", "task_id", taskID, "err", releaseErr)
			}
		}()
		if *errp == nil {
			return
		}
		// The run context may already be cancelled; failure marking gets
		// its own deadline.
		updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if markErr := q.MarkTaskFailed(updateCtx, taskID, (*errp).Error()); markErr != nil {
			logger.Warn("[Queue] Failed to mark task as failed", "task_id", taskID, "err", markErr)
		}
	}
	return task, finish, nil
}

func progressReporter(ctx context.Context, q *db.Queries, taskID string) plan.ProgressReporter {
	return func(stage string, percent int) {
		if err := q.UpdateTaskProgress(ctx, taskID, stage, percent); err != nil {
			logger.Warn("[Queue] Failed to update progress", "task_id", taskID, "stage", stage, "err", err)
		}
	}
}

// ProcessGenerate runs the full analysis pipeline for one task.
func ProcessGenerate(
	ctx context.Context,
	s3Client *awss3.Client,
	aiClient ai.VisionClient,
	conn *pgxpool.Pool,
	msg string,
) (err error) {
	var data TaskMsg
	if err = json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}
	if data.TaskID == "" {
		return errors.New("message without task id")
	}

	q := db.New(conn)
	task, finish, err := startTask(ctx, conn, q, data.TaskID)
	if err != nil || task == nil {
		return err
	}
	defer finish(&err)

	pages, err := preparePages(ctx, s3Client, q, task)
	if err != nil {
		return err
	}

	pipeline := plan.NewPipeline(aiClient, db.NewTaskStore(q, task.ID))
	pipeline.SetNotes(task.Comment)
	pipeline.Progress = progressReporter(ctx, q, task.ID)

	result, err := pipeline.Run(ctx, pages)
	if err != nil {
		return err
	}

	logger.Info("[Queue] Analysis complete",
		"task_id", task.ID,
		"pages", len(pages),
		"rooms", len(result.Rooms),
		"bills", len(result.Bills),
	)

	return q.MarkTaskCompleted(ctx, task.ID, nil)
}

// ProcessClassify runs the classification-only flow.
func ProcessClassify(
	ctx context.Context,
	s3Client *awss3.Client,
	aiClient ai.VisionClient,
	conn *pgxpool.Pool,
	msg string,
) (err error) {
	var data TaskMsg
	if err = json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}
	if data.TaskID == "" {
		return errors.New("message without task id")
	}

	q := db.New(conn)
	task, finish, err := startTask(ctx, conn, q, data.TaskID)
	if err != nil || task == nil {
		return err
	}
	defer finish(&err)

	pages, err := preparePages(ctx, s3Client, q, task)
	if err != nil {
		return err
	}

	pipeline := plan.NewPipeline(aiClient, db.NewTaskStore(q, task.ID))
	pipeline.Progress = progressReporter(ctx, q, task.ID)

	classifications, err := pipeline.RunClassification(ctx, pages)
	if err != nil {
		return err
	}

	logger.Info("[Queue] Classification complete",
		"task_id", task.ID,
		"pages", len(classifications),
	)

	return q.MarkTaskCompleted(ctx, task.ID, nil)
}

// RecoverStaleTasks fails tasks a previous worker left mid-flight. Called
// once on worker start, before consuming.
func RecoverStaleTasks(ctx context.Context, conn *pgxpool.Pool) {
	q := db.New(conn)
	recovered, err := q.RecoverStaleTasks(ctx)
	if err != nil {
		logger.Error("[Queue] Stale task recovery failed", "err", err)
		return
	}
	if recovered > 0 {
		logger.Info("[Queue] Marked stale tasks as failed", "count", recovered)
	} else {
		logger.Debug("[Queue] No stale tasks found")
	}
}
