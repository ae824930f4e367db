package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"subgen/internal/fetch"
	"subgen/internal/media"
	"subgen/internal/progress"
	"subgen/internal/storage"
	"subgen/internal/subtitle"
	"subgen/internal/transcribe"
	"subgen/internal/userstore"
	"subgen/pkg/log"
)

// Line limits used when formatting transcription output into cues.
// Translated cues get more room because lengths shift in translation.
const (
	sameLanguageMaxLine   = 60
	translatedMaxLine     = 75
	subtitleMinSplit      = 30
	minCueCount           = 2
	transcriptInlineRunes = 4096
)

// Config holds orchestrator-level settings.
type Config struct {
	// WorkRoot is the directory job work dirs are created under.
	WorkRoot string
	// WatermarkPath is the logo overlaid during burn-in.
	WatermarkPath string
	// CreditText overrides the default trailing credit cue.
	CreditText string
	// PollWarmupTicks pads the synthetic transcription progress estimate
	// for model spin-up.
	PollWarmupTicks int
	// TranscriptInlineLimit is the longest transcript delivered as plain
	// text; longer ones go out as a document.
	TranscriptInlineLimit int
}

// Deps are the external collaborators the orchestrator drives.
type Deps struct {
	Messenger   Messenger
	Fetcher     Fetcher
	Transcriber Transcriber
	Translator  Translator
	Uploader    Uploader
	Registrar   DisplayRegistrar
	NewEncoder  EncoderFactory
	Store       Store
	Clock       Clock
}

// Orchestrator owns the job state machine: it admits requests, drives
// each admitted job through the pipeline on its own goroutine, and
// guarantees cleanup on every exit path.
type Orchestrator struct {
	config Config
	deps   Deps
	leases *leaseMap

	mu   sync.Mutex
	jobs map[string]*Job
}

func NewOrchestrator(config Config, deps Deps) (*Orchestrator, error) {
	if config.WorkRoot == "" {
		return nil, fmt.Errorf("work root is required")
	}
	if deps.Messenger == nil || deps.Fetcher == nil || deps.Transcriber == nil ||
		deps.Uploader == nil || deps.NewEncoder == nil || deps.Store == nil {
		return nil, fmt.Errorf("missing pipeline dependency")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if config.PollWarmupTicks == 0 {
		config.PollWarmupTicks = progress.WarmModelOffset
	}
	if config.TranscriptInlineLimit == 0 {
		config.TranscriptInlineLimit = transcriptInlineRunes
	}
	if err := os.MkdirAll(config.WorkRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}

	return &Orchestrator{
		config: config,
		deps:   deps,
		leases: newLeaseMap(),
		jobs:   make(map[string]*Job),
	}, nil
}

// Submit admits a request and, on success, starts its pipeline in the
// background. Admission rejects duplicate jobs for the user, playlist
// sources, and videos longer than the remaining quota; rejected jobs are
// terminal Cancelled and no worker is spawned.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Job, error) {
	job := &Job{
		ID:              uuid.NewString(),
		Request:         req,
		State:           StateAdmitted,
		DurationMinutes: req.DurationMinutes,
		CreatedAt:       o.deps.Clock(),
	}

	if err := o.admit(ctx, job); err != nil {
		o.mu.Lock()
		job.State = StateCancelled
		job.FailureKind = KindOf(err)
		job.FailureText = MessageOf(err)
		job.FinishedAt = o.deps.Clock()
		o.jobs[job.ID] = job
		snapshot := cloneJob(job)
		o.mu.Unlock()

		if msgErr := o.deps.Messenger.Fail(ctx, snapshot, KindOf(err), MessageOf(err)); msgErr != nil {
			log.Warn("Failed to message admission rejection for %s: %v", job.ID, msgErr)
		}
		return snapshot, err
	}

	job.WorkDir = filepath.Join(o.config.WorkRoot, job.ID)
	if err := os.MkdirAll(job.WorkDir, 0o755); err != nil {
		o.leases.release(req.UserID, job.ID)
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	o.mu.Lock()
	o.jobs[job.ID] = job
	snapshot := cloneJob(job)
	o.mu.Unlock()

	log.Info("Job %s admitted for user %s", job.ID, req.UserID)
	go o.run(context.WithoutCancel(ctx), job)
	return snapshot, nil
}

// admit runs the admission checks and takes the user's job lease.
func (o *Orchestrator) admit(ctx context.Context, job *Job) error {
	req := job.Request

	if req.Link == "" && req.LocalFile == "" {
		return failf(FailureAdmissionRejected, nil, "no video source was provided")
	}
	if req.Link != "" && fetch.IsPlaylist(req.Link) {
		return failf(FailureAdmissionRejected, nil, "playlists are not supported, send a single video")
	}
	if !o.leases.acquire(req.UserID, job.ID) {
		return failf(FailureAdmissionRejected, nil, "you already have a job running, wait for it to finish")
	}

	release := func() { o.leases.release(req.UserID, job.ID) }

	available, err := o.deps.Store.AvailableMinutes(ctx, req.UserID)
	if err != nil {
		release()
		return failf(FailureInternal, err, "could not read your remaining minutes")
	}

	if job.DurationMinutes == 0 && req.Link != "" {
		minutes, err := o.deps.Fetcher.ProbeDurationMinutes(ctx, req.Link)
		switch {
		case errors.Is(err, fetch.ErrUnavailable):
			release()
			return failf(FailureSourceUnavailable, err, "the video is unavailable")
		case err != nil:
			// duration gets re-checked after download
			log.Warn("Duration probe failed for %s: %v", req.Link, err)
		default:
			job.DurationMinutes = minutes
		}
	}

	if job.DurationMinutes > available {
		release()
		return failf(FailureAdmissionRejected, nil,
			"the video is longer than the minutes you have remaining (%d minutes)", available)
	}
	return nil
}

// run drives one admitted job to a terminal state. Cleanup (work dir
// removal, handle clearing, lease release) happens on every exit path,
// panics included.
func (o *Orchestrator) run(ctx context.Context, job *Job) {
	events := make(chan progress.Event, 64)
	consumerDone := make(chan struct{})
	go o.consumeProgress(ctx, job, events, consumerDone)

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = failf(FailureInternal, nil, "something went wrong, please try again later")
				log.Error("Job %s panicked: %v", job.ID, r)
			}
		}()
		runErr = o.execute(ctx, job, events)
	}()

	close(events)
	<-consumerDone

	if err := os.RemoveAll(job.WorkDir); err != nil {
		log.Warn("Failed to remove work dir for job %s: %v", job.ID, err)
	}

	o.mu.Lock()
	job.Handle = ""
	if runErr != nil {
		job.State = StateFailed
		job.FailureKind = KindOf(runErr)
		job.FailureText = MessageOf(runErr)
	} else {
		job.State = StateSucceeded
	}
	job.FinishedAt = o.deps.Clock()
	snapshot := cloneJob(job)
	o.mu.Unlock()

	o.leases.release(job.Request.UserID, job.ID)

	if runErr != nil {
		log.Error("Job %s failed: %v", job.ID, runErr)
		if err := o.deps.Messenger.Fail(ctx, snapshot, snapshot.FailureKind, snapshot.FailureText); err != nil {
			log.Warn("Failed to message failure for job %s: %v", job.ID, err)
		}
	} else {
		log.Info("Job %s succeeded", job.ID)
	}
}

func (o *Orchestrator) execute(ctx context.Context, job *Job, events chan<- progress.Event) error {
	req := job.Request

	videoPath := req.LocalFile
	if videoPath == "" {
		o.setState(job, StateDownloading)
		videoPath = filepath.Join(job.WorkDir, "video.mp4")
		monitor := progress.NewDownloadMonitor()
		err := o.deps.Fetcher.Download(ctx, req.Link, videoPath, req.Selection, func(fragmentIndex int, percentText string) {
			if percent, ok := monitor.Update(fragmentIndex, percentText); ok {
				emit(events, progress.Event{Stage: string(StateDownloading), Percent: percent, Label: "Downloading video"})
			}
		})
		if err != nil {
			if errors.Is(err, fetch.ErrUnavailable) {
				return failf(FailureSourceUnavailable, err, "the video is unavailable")
			}
			return failf(FailureSourceUnavailable, err, "could not download the video")
		}
	}

	encoder := o.deps.NewEncoder(videoPath)

	// the admission-time duration may have been unknown
	if job.DurationMinutes == 0 {
		minutes, err := encoder.DurationMinutes(ctx)
		if err != nil {
			return failf(FailureInternal, err, "could not read the video duration")
		}
		o.mu.Lock()
		job.DurationMinutes = minutes
		o.mu.Unlock()

		available, err := o.deps.Store.AvailableMinutes(ctx, req.UserID)
		if err != nil {
			return failf(FailureInternal, err, "could not read your remaining minutes")
		}
		if minutes > available {
			return failf(FailureAdmissionRejected, nil,
				"the video turned out to be longer than the minutes you have remaining (%d minutes)", available)
		}
	}

	o.setState(job, StateExtractingAudio)
	audioPath, err := encoder.ExtractAudio(ctx)
	if err != nil {
		return failf(FailureNoAudioTrack, err, "the video has no audio track")
	}

	keys := storage.NewKeySet(req.Name, req.UserID, o.deps.Clock())
	if err := o.deps.Uploader.Upload(ctx, audioPath, keys.Audio()); err != nil {
		return failf(FailureDelivery, err, "could not store the audio")
	}

	o.setState(job, StateTranscribing)
	align := req.Mode != ModeTranscribe

	// source uploads that only archive finish in the background, but
	// must land before cleanup removes the work dir
	archive := storage.NewAsyncUploader(o.deps.Uploader)
	defer archive.Wait()

	submit := func(ctx context.Context) (transcribe.JobHandle, error) {
		h, err := o.deps.Transcriber.Submit(ctx, o.deps.Uploader.PublicURL(keys.Audio()), req.LanguageHint, align)
		if err != nil {
			return "", failf(FailureTranscriptionSubmit, err, "could not start the transcription, please try again later")
		}
		o.mu.Lock()
		job.Handle = string(h)
		o.mu.Unlock()
		return h, nil
	}

	var handle transcribe.JobHandle
	if req.Mode == ModeDisplay {
		// the player page needs the source video, so its upload runs
		// alongside the submission and both must succeed
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			h, err := submit(gctx)
			handle = h
			return err
		})
		g.Go(func() error {
			if err := o.deps.Uploader.Upload(gctx, videoPath, keys.Video()); err != nil {
				return failf(FailureDelivery, err, "could not store the video")
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		archive.Upload(ctx, videoPath, keys.Video(),
			func(size int64, elapsed time.Duration) {
				log.Info("Archived source video for job %s (%d bytes in %s)", job.ID, size, elapsed.Round(time.Millisecond))
			},
			func(err error) {
				log.Warn("Video archive upload failed for job %s: %v", job.ID, err)
			})
		h, err := submit(ctx)
		if err != nil {
			return err
		}
		handle = h
	}

	monitor := progress.NewPollMonitor(job.DurationMinutes, align, o.config.PollWarmupTicks)
	status, err := o.deps.Transcriber.Await(ctx, handle, func() {
		if percent, ok := monitor.Tick(); ok {
			emit(events, progress.Event{Stage: string(StateTranscribing), Percent: percent, Label: "Generating subtitles"})
		}
	})
	if err != nil {
		return failf(FailureTranscriptionJob, err, "the transcription did not finish, please try again later")
	}
	if status == transcribe.StatusFailed {
		return failf(FailureTranscriptionJob, nil, "the transcription failed, please try again later")
	}

	output, err := o.deps.Transcriber.Result(ctx, handle)
	if err != nil {
		return failf(FailureTranscriptionJob, err, "could not fetch the transcription result")
	}

	detected := output.DetectedLanguage
	if detected == "" {
		o.setState(job, StateDetectingLanguage)
		if tag := transcribe.DetectLanguage(output.Segments); tag != language.Und {
			detected = tag.String()
		}
	}
	o.mu.Lock()
	job.DetectedLanguage = transcribe.NormalizeDetectedLanguage(detected)
	o.mu.Unlock()

	delivery, err := o.buildArtifact(ctx, job, events, encoder, output, keys, videoPath)
	if err != nil {
		return err
	}

	o.setState(job, StateDelivering)
	o.mu.Lock()
	snapshot := cloneJob(job)
	o.mu.Unlock()
	if err := o.deps.Messenger.Deliver(ctx, snapshot, delivery); err != nil {
		return failf(FailureDelivery, err, "could not deliver the result")
	}

	o.settle(ctx, job)
	return nil
}

// settle debits the quota and writes the history row after a successful
// delivery. Bookkeeping failures are logged, not surfaced; the user
// already has the artifact.
func (o *Orchestrator) settle(ctx context.Context, job *Job) {
	req := job.Request

	if err := o.deps.Store.DebitMinutes(ctx, req.UserID, job.DurationMinutes); err != nil {
		log.Error("Failed to debit %d minutes from %s: %v", job.DurationMinutes, req.UserID, err)
	}
	if err := o.deps.Store.RecordRequest(ctx, userstore.RequestRecord{
		UserID:          req.UserID,
		Username:        req.Username,
		Name:            req.Name,
		Link:            req.Link,
		SentAt:          o.deps.Clock(),
		DurationMinutes: job.DurationMinutes,
		Resolution:      req.Selection.Resolution,
		Language:        req.TargetLanguage,
		Transcription:   req.Mode == ModeTranscribe,
	}); err != nil {
		log.Error("Failed to record request for %s: %v", req.UserID, err)
	}
}

// buildArtifact turns the transcription output into the deliverable for
// the job's mode.
func (o *Orchestrator) buildArtifact(ctx context.Context, job *Job, events chan<- progress.Event, encoder Encoder, output *transcribe.Output, keys storage.KeySet, videoPath string) (Delivery, error) {
	if job.Request.Mode == ModeTranscribe {
		return o.buildTranscript(ctx, job, output, keys)
	}

	subtitlePath, err := o.formatSubtitles(ctx, job, output)
	if err != nil {
		return Delivery{}, err
	}

	switch job.Request.Mode {
	case ModeDisplay:
		return o.publishDisplay(ctx, job, subtitlePath, keys)
	default:
		return o.burnIn(ctx, job, events, encoder, subtitlePath, keys)
	}
}

func (o *Orchestrator) buildTranscript(ctx context.Context, job *Job, output *transcribe.Output, keys storage.KeySet) (Delivery, error) {
	o.setState(job, StateFormatting)

	texts := make([]string, 0, len(output.Segments))
	for _, seg := range output.Segments {
		texts = append(texts, seg.Text)
	}
	transcription := strings.TrimSpace(strings.Join(texts, " "))
	if transcription == "" {
		return Delivery{}, failf(FailureNoSpeech, nil, "no speech was detected in the video")
	}

	path := filepath.Join(job.WorkDir, "transcription.txt")
	if err := os.WriteFile(path, []byte(transcription), 0o644); err != nil {
		return Delivery{}, failf(FailureInternal, err, "could not write the transcription")
	}

	target := job.Request.TargetLanguage
	if target != TargetOriginal && !strings.EqualFold(target, job.DetectedLanguage) {
		if o.deps.Translator == nil {
			return Delivery{}, failf(FailureTranslation, nil, "translation is not configured")
		}
		o.setState(job, StateTranslating)
		translatedPath, err := o.deps.Translator.TranslateFile(ctx, path, target)
		if err != nil {
			return Delivery{}, failf(FailureTranslation, err, "could not translate the transcription")
		}
		path = translatedPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Delivery{}, failf(FailureInternal, err, "could not read the transcription")
	}

	if err := o.deps.Uploader.Upload(ctx, path, keys.Transcript()); err != nil {
		log.Warn("Transcript archive upload failed for job %s: %v", job.ID, err)
	}

	delivery := Delivery{DetectedLanguage: job.DetectedLanguage}
	if utf8.RuneCountInString(string(content)) <= o.config.TranscriptInlineLimit {
		delivery.Kind = DeliverText
		delivery.Text = string(content)
	} else {
		delivery.Kind = DeliverDocument
		delivery.FilePath = path
	}
	return delivery, nil
}

// formatSubtitles runs the segmentation engine. Same-language jobs split
// on the transcription directly (word-timed when available); translated
// jobs first flatten to segment-level cues, translate them in one batch,
// then split the translated text.
func (o *Orchestrator) formatSubtitles(ctx context.Context, job *Job, output *transcribe.Output) (string, error) {
	o.setState(job, StateFormatting)

	req := job.Request
	vtt := req.Mode == ModeDisplay
	ext := ".srt"
	if vtt {
		ext = ".vtt"
	}
	path := filepath.Join(job.WorkDir, "subtitles"+ext)

	target := req.TargetLanguage
	sameLanguage := target == TargetOriginal || strings.EqualFold(target, job.DetectedLanguage)

	var processor *subtitle.Processor
	if sameLanguage {
		if target != TargetOriginal {
			log.Info("Job %s target %s matches the detected language, skipping translation", job.ID, target)
		}
		processor = subtitle.NewProcessor(output.Segments, shortLang(job.DetectedLanguage), sameLanguageMaxLine, subtitleMinSplit, vtt)
		if !output.WordLevel {
			processor.PreSplitSentences()
		}
	} else {
		if o.deps.Translator == nil {
			return "", failf(FailureTranslation, nil, "translation is not configured")
		}
		o.setState(job, StateTranslating)
		processor = subtitle.NewProcessor(output.Segments, shortLang(target), translatedMaxLine, subtitleMinSplit, vtt)
		cues := processor.ProcessSegments(false)
		if len(cues) > 0 {
			texts := make([]string, len(cues))
			for i, cue := range cues {
				texts[i] = cue.Text
			}
			translated, err := o.deps.Translator.TranslateTexts(ctx, texts, target)
			if err != nil {
				return "", failf(FailureTranslation, err, "could not translate the subtitles")
			}
			segments := make([]subtitle.Segment, len(cues))
			for i, cue := range cues {
				segments[i] = subtitle.Segment{Start: cue.Start, End: cue.End, Text: translated[i]}
			}
			processor.ReplaceSegments(segments)
		}
		o.setState(job, StateFormatting)
	}

	if o.config.CreditText != "" {
		processor.SetCreditText(o.config.CreditText)
	}

	count, err := processor.Save(path, true)
	if err != nil {
		return "", failf(FailureInternal, err, "could not write the subtitles")
	}
	if count < minCueCount {
		return "", failf(FailureNoSpeech, nil, "no speech was detected in the video")
	}

	o.mu.Lock()
	job.CueCount = count
	o.mu.Unlock()
	return path, nil
}

func (o *Orchestrator) publishDisplay(ctx context.Context, job *Job, subtitlePath string, keys storage.KeySet) (Delivery, error) {
	if o.deps.Registrar == nil {
		return Delivery{}, failf(FailureDelivery, nil, "display delivery is not configured")
	}

	if err := o.deps.Uploader.Upload(ctx, subtitlePath, keys.Subtitles(true)); err != nil {
		return Delivery{}, failf(FailureDelivery, err, "could not store the subtitles")
	}

	lang := job.Request.TargetLanguage
	if lang == TargetOriginal {
		lang = job.DetectedLanguage
	}
	link, err := o.deps.Registrar.Register(ctx,
		o.deps.Uploader.PublicURL(keys.Video()),
		o.deps.Uploader.PublicURL(keys.Subtitles(true)),
		job.Request.Link,
		lang,
	)
	if err != nil {
		return Delivery{}, failf(FailureDelivery, err, "could not publish the video page")
	}

	o.mu.Lock()
	job.ResultLink = link
	o.mu.Unlock()
	return Delivery{
		Kind:             DeliverLink,
		URL:              link,
		DetectedLanguage: job.DetectedLanguage,
		CueCount:         job.CueCount,
	}, nil
}

func (o *Orchestrator) burnIn(ctx context.Context, job *Job, events chan<- progress.Event, encoder Encoder, subtitlePath string, keys storage.KeySet) (Delivery, error) {
	o.setState(job, StateBurningIn)

	settings := job.Request.Settings
	fontSize := settings.FontSize
	if fontSize == 0 {
		size, err := encoder.FontSize(ctx)
		if err != nil {
			log.Warn("Could not probe orientation for job %s, assuming landscape: %v", job.ID, err)
			size = 14
		}
		fontSize = size
	}

	outPath, err := encoder.BurnInSubtitles(ctx, media.BurnInOptions{
		SubtitlePath:     subtitlePath,
		WatermarkPath:    o.config.WatermarkPath,
		FontName:         settings.Font,
		FontSize:         fontSize,
		BorderBox:        settings.BorderBox,
		OutputPath:       filepath.Join(job.WorkDir, "output.mp4"),
		DurationOverride: time.Duration(job.DurationMinutes) * time.Minute,
	}, func(percent int) {
		emit(events, progress.Event{Stage: string(StateBurningIn), Percent: percent, Label: "Adding subtitles"})
	})
	if err != nil {
		return Delivery{}, failf(FailureEncode, err, "could not add the subtitles to the video")
	}

	// archive the finished video; the work dir copy disappears at cleanup
	resultURL := ""
	if err := o.deps.Uploader.Upload(ctx, outPath, keys.Output()); err != nil {
		log.Warn("Output archive upload failed for job %s: %v", job.ID, err)
	} else {
		resultURL = o.deps.Uploader.PublicURL(keys.Output())
	}

	o.mu.Lock()
	job.ResultLink = resultURL
	o.mu.Unlock()
	return Delivery{
		Kind:             DeliverVideo,
		FilePath:         outPath,
		URL:              resultURL,
		DetectedLanguage: job.DetectedLanguage,
		CueCount:         job.CueCount,
	}, nil
}

// consumeProgress is the single goroutine allowed to edit progress
// messages for a job. Within a stage the shown percentage never moves
// backwards.
func (o *Orchestrator) consumeProgress(ctx context.Context, job *Job, events <-chan progress.Event, done chan<- struct{}) {
	defer close(done)

	last := make(map[string]int)
	for event := range events {
		if prev, ok := last[event.Stage]; ok && event.Percent < prev {
			continue
		}
		last[event.Stage] = event.Percent

		snapshot := o.GetJob(job.ID)
		if snapshot == nil {
			continue
		}
		if err := o.deps.Messenger.ShowProgress(ctx, snapshot, event); err != nil {
			log.Warn("Progress update failed for job %s: %v", job.ID, err)
		}
	}
}

// emit forwards an event without ever blocking pipeline work; a full
// consumer just misses an intermediate update.
func emit(events chan<- progress.Event, event progress.Event) {
	select {
	case events <- event:
	default:
	}
}

func (o *Orchestrator) setState(job *Job, state State) {
	o.mu.Lock()
	job.State = state
	o.mu.Unlock()
	log.Info("Job %s entered state %s", job.ID, state)
}

// GetJob returns a snapshot of the job, or nil when unknown.
func (o *Orchestrator) GetJob(id string) *Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return cloneJob(o.jobs[id])
}

// Jobs returns snapshots of all known jobs, oldest first.
func (o *Orchestrator) Jobs() []*Job {
	o.mu.Lock()
	defer o.mu.Unlock()

	ret := make([]*Job, 0, len(o.jobs))
	for _, job := range o.jobs {
		ret = append(ret, cloneJob(job))
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret
}

// RunningJobFor reports the id of the user's active job, if any.
func (o *Orchestrator) RunningJobFor(userID string) (string, bool) {
	return o.leases.holder(userID)
}

// shortLang reduces a language code like "EN-US" to its two-letter base.
func shortLang(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if len(code) > 2 {
		code = code[:2]
	}
	return code
}
