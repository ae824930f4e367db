package main

import (
	"context"
	"path/filepath"

	"subgen/internal/pipeline"
	"subgen/internal/progress"
	"subgen/pkg/log"
)

// daemonMessenger is the delivery surface of the HTTP deployment. Job
// state is observed through the API stream, so progress only needs to be
// logged; file artifacts get pushed to the artifact store before their
// work dir disappears, and the public URL is what clients fetch.
type daemonMessenger struct {
	uploader pipeline.Uploader
}

func newDaemonMessenger(uploader pipeline.Uploader) *daemonMessenger {
	return &daemonMessenger{uploader: uploader}
}

func (m *daemonMessenger) ShowProgress(_ context.Context, job *pipeline.Job, event progress.Event) error {
	log.Debug("Job %s %s %s %3d%%", job.ID, event.Stage, progress.Bar(event.Percent, progress.DefaultBarWidth), event.Percent)
	return nil
}

func (m *daemonMessenger) Deliver(ctx context.Context, job *pipeline.Job, delivery pipeline.Delivery) error {
	switch delivery.Kind {
	case pipeline.DeliverDocument:
		key := "results/" + job.ID + "/" + filepath.Base(delivery.FilePath)
		if err := m.uploader.Upload(ctx, delivery.FilePath, key); err != nil {
			return err
		}
		log.Info("Job %s result available at %s", job.ID, m.uploader.PublicURL(key))
	case pipeline.DeliverVideo, pipeline.DeliverLink:
		log.Info("Job %s result available at %s", job.ID, delivery.URL)
	case pipeline.DeliverText:
		log.Info("Job %s transcript ready (%d characters)", job.ID, len(delivery.Text))
	}
	return nil
}

func (m *daemonMessenger) Fail(_ context.Context, job *pipeline.Job, kind pipeline.FailureKind, message string) error {
	log.Warn("Job %s failed with %s: %s", job.ID, kind, message)
	return nil
}
