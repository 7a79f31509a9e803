//go:build !unix

package process

import (
	"context"
	"errors"
	"log/slog"

	"github.com/me/dispatch/pkg/model"
)

// OSController is unavailable without POSIX job-control signals; every
// start fails with a creation error.
type OSController struct {
	logger *slog.Logger
}

// NewOSController creates an OSController.
func NewOSController(_ OSConfig, logger *slog.Logger) *OSController {
	return &OSController{logger: logger.With("component", "os-controller")}
}

func (c *OSController) Name() string { return "os" }

func (c *OSController) Start(_ context.Context, job *model.Job) error {
	return model.NewCreationError(job.ID, errors.ErrUnsupported)
}

func (c *OSController) Resume(_ context.Context, job *model.Job) error {
	return model.NewSignalError(OpResume, job.ID, errors.ErrUnsupported)
}

func (c *OSController) Suspend(_ context.Context, job *model.Job) error {
	return model.NewSignalError(OpSuspend, job.ID, errors.ErrUnsupported)
}

func (c *OSController) Terminate(_ context.Context, job *model.Job) error {
	return model.NewSignalError(OpTerminate, job.ID, errors.ErrUnsupported)
}

func (c *OSController) Release(*model.Job) {}
