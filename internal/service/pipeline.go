package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/config"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/jobs"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/persistence"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/prepare"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/stitch"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/subtitle"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/transcribe"
	"github.com/bpwhelan/ASB-Auto-Subs/pkg/file"
	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

// Execute runs one job from the queue. It is the jobs.Executor of the
// daemon: errors come back classified, and a wrapped jobs.ErrSkipped
// marks work that was already done.
func (s *TranscriptionService) Execute(ctx context.Context, job *jobs.TranscriptionJob) error {
	if job == nil {
		return NewPipelineError(ErrInput, "job is nil")
	}

	return SafeExecute("job "+job.ID, func() error {
		result, err := s.runJob(ctx, job)
		switch {
		case err == nil:
			log.Info("Job %s finished: %d entries from %d/%d unit(s) -> %s",
				job.ID, result.Entries, result.UnitsOK, result.UnitsTotal, result.OutputPath)
			return nil
		case errors.Is(err, jobs.ErrSkipped):
			log.Info("Job %s skipped: %v", job.ID, err)
			return err
		default:
			s.errorHandler.HandleError(err)
			return err
		}
	})
}

// runJob wraps the pipeline with checkpoint bookkeeping. Checkpoints
// are kept only while they might still be replayed: an interrupted run
// resumes from them after a restart, every other outcome ends the job
// for good.
func (s *TranscriptionService) runJob(ctx context.Context, job *jobs.TranscriptionJob) (RunResult, error) {
	result, err := s.runPipeline(ctx, job)
	if err == nil {
		s.discardCheckpoints(job.ID)
		return result, nil
	}
	if !errors.Is(err, jobs.ErrSkipped) && !errors.Is(err, context.Canceled) {
		s.discardCheckpoints(job.ID)
	}
	return result, err
}

func (s *TranscriptionService) runPipeline(ctx context.Context, job *jobs.TranscriptionJob) (RunResult, error) {
	settings, err := s.settings.GetRuntimeSettings()
	if err != nil {
		return RunResult{}, WrapError(err, ErrConfig, "failed to load runtime settings")
	}
	params, err := s.transcriptionParams(settings)
	if err != nil {
		return RunResult{}, err
	}

	temp := prepare.NewRegistry()
	defer temp.Cleanup()

	input, scratch, err := s.resolveInput(ctx, job, temp)
	if scratch != "" {
		defer os.RemoveAll(scratch)
	}
	if err != nil {
		return RunResult{}, err
	}

	outputPath := s.resolveOutputPath(job, input)
	if s.subtitleExists(outputPath) {
		return RunResult{}, fmt.Errorf("%w: subtitle already exists at %s", jobs.ErrSkipped, outputPath)
	}
	s.reportOutputFile(job.ID, outputPath)

	plan, err := s.newPlanner(temp).Classify(ctx, input)
	if err != nil {
		return RunResult{}, gateError(err)
	}
	log.Info("Job %s: %s plan, %d unit(s) for %s",
		job.ID, plan.Kind, len(plan.Units), filepath.Base(input))

	entries, cursor, nextUnit := s.resumePoint(ctx, job.ID, len(plan.Units))
	resumed := nextUnit > 0

	progress := jobs.UnitProgress{Total: len(plan.Units), Done: nextUnit}
	s.reportProgress(job.ID, progress)

	primary := params.Granularities.Primary()
	var failedUnits []int

	for i := nextUnit; i < len(plan.Units); i++ {
		unit := plan.Units[i]

		res, err := s.transcriber.Transcribe(ctx, unit, params)
		if err != nil {
			if ctx.Err() != nil {
				return RunResult{}, WrapError(ctx.Err(), ErrUnknown, "run interrupted").
					WithContext("unit", i+1).
					WithContext("units_total", len(plan.Units))
			}
			uerr := backendError(err, unit, i)
			log.Warn("Unit %d/%d failed, continuing without it: %v", i+1, len(plan.Units), uerr)
			failedUnits = append(failedUnits, i)
			progress.Failed++
			s.checkpointUnit(job.ID, i, nil, cursor)
			s.reportProgress(job.ID, progress)
			continue
		}

		unitEntries, next := stitch.Fold(cursor, res, primary)
		entries = append(entries, unitEntries...)
		cursor = next
		progress.Done++
		s.checkpointUnit(job.ID, i, unitEntries, cursor)
		s.reportProgress(job.ID, progress)
	}

	if len(entries) == 0 {
		return RunResult{}, NewPipelineError(ErrNoContent, "transcription produced no usable entries").
			WithContext("input", filepath.Base(input)).
			WithContext("units_failed", len(failedUnits))
	}

	outFile := stitch.ToFile(entries, language.Und)
	if settings.AutoDetect {
		outFile.Language = subtitle.DetectLanguage(outFile.Lines)
	} else {
		outFile.Language = language.Make(settings.Language)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return RunResult{}, WrapError(err, ErrFileWrite, "failed to create output directory").
				WithContext("dir", dir)
		}
	}
	if err := s.writer.Write(outputPath, outFile); err != nil {
		return RunResult{}, WrapError(err, ErrFileWrite, "failed to write subtitle file").
			WithContext("path", outputPath)
	}
	outFile.Path = outputPath
	log.Info("Wrote %d entries (%s) to %s", len(outFile.Lines), outFile.Language, outputPath)

	s.deliver(ctx, settings, outputPath)

	return RunResult{
		OutputPath:  outputPath,
		Entries:     len(entries),
		UnitsTotal:  len(plan.Units),
		UnitsOK:     progress.Done,
		UnitsFailed: progress.Failed,
		FailedUnits: failedUnits,
		Language:    outFile.Language.String(),
		Resumed:     resumed,
	}, nil
}

// resolveInput turns the job payload into a local audio path. URL jobs
// download into a fresh scratch directory under the data dir; the
// caller removes it when the run ends.
func (s *TranscriptionService) resolveInput(ctx context.Context, job *jobs.TranscriptionJob, temp *prepare.Registry) (input, scratch string, err error) {
	payload := job.Payload
	switch {
	case payload.SourceURL != "":
		scratch = filepath.Join(s.cfg.System.DataDir, "downloads", uuid.NewString())
		if err := os.MkdirAll(scratch, 0o755); err != nil {
			return "", scratch, WrapError(err, ErrFileWrite, "failed to create download directory").
				WithContext("dir", scratch)
		}
		log.Info("Job %s: downloading audio from %s", job.ID, payload.SourceURL)
		path, err := s.newDownloader(scratch).DownloadAudio(ctx, payload.SourceURL)
		if err != nil {
			return "", scratch, WrapError(err, ErrTool, "audio download failed").
				WithContext("url", payload.SourceURL)
		}
		temp.Add(path)
		return path, scratch, nil

	case payload.MediaFile != "":
		return payload.MediaFile, "", nil

	default:
		return "", "", NewPipelineError(ErrInput, "job has neither a media file nor a source url")
	}
}

// resolveOutputPath decides where the subtitle goes. An explicit
// output in the payload wins, then the configured output dir. URL jobs
// without either land in the data dir, because their audio lives in a
// scratch directory that is removed after the run; local files get the
// subtitle as a sibling.
func (s *TranscriptionService) resolveOutputPath(job *jobs.TranscriptionJob, input string) string {
	if job.Payload.OutputFile != "" {
		return job.Payload.OutputFile
	}
	name := filepath.Base(file.ReplaceExt(input, ".srt"))
	if s.cfg.System.OutputDir != "" {
		return filepath.Join(s.cfg.System.OutputDir, name)
	}
	if job.Payload.SourceURL != "" {
		return filepath.Join(s.cfg.System.DataDir, name)
	}
	return file.ReplaceExt(input, ".srt")
}

// subtitleExists reports whether a usable subtitle is already at path.
// An unreadable or empty file does not count, the run regenerates it.
func (s *TranscriptionService) subtitleExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	existing, err := s.reader.Read(path)
	if err != nil || existing.Empty() {
		log.Warn("Existing subtitle %s is unreadable or empty, regenerating", path)
		return false
	}
	return true
}

// resumePoint loads checkpointed work for the job. Checkpoints that do
// not fit the current plan are discarded and the run starts over.
func (s *TranscriptionService) resumePoint(ctx context.Context, jobID string, planUnits int) ([]stitch.Entry, stitch.Cursor, int) {
	if s.store == nil {
		return nil, stitch.Cursor{}, 0
	}

	entries, cursor, next, err := s.store.ResumePoint(ctx, jobID)
	if err != nil {
		log.Warn("Could not load checkpoints of job %s, starting over: %v", jobID, err)
		return nil, stitch.Cursor{}, 0
	}
	if next == 0 {
		return nil, stitch.Cursor{}, 0
	}
	if next > planUnits {
		log.Warn("Job %s has checkpoints for %d unit(s) but the plan has %d, starting over",
			jobID, next, planUnits)
		s.discardCheckpoints(jobID)
		return nil, stitch.Cursor{}, 0
	}

	log.Info("Resuming job %s at unit %d/%d, %d entries carried over",
		jobID, next+1, planUnits, len(entries))
	return entries, cursor, next
}

// checkpointUnit records one processed unit. Failed units store no
// entries and a pass-through cursor, so the resume point still moves
// past them. The write runs on its own context: it must land even when
// the run's context is already canceled. Checkpointing is best effort.
func (s *TranscriptionService) checkpointUnit(jobID string, index int, entries []stitch.Entry, cursor stitch.Cursor) {
	if s.store == nil {
		return
	}
	err := s.store.SaveUnitCheckpoint(context.Background(), persistence.UnitCheckpoint{
		JobID:     jobID,
		UnitIndex: index,
		Entries:   entries,
		Cursor:    cursor,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Warn("Could not checkpoint unit %d of job %s: %v", index, jobID, err)
	}
}

func (s *TranscriptionService) transcriptionParams(settings config.RuntimeSettings) (transcribe.Params, error) {
	grans, err := transcribe.ParseGranularities(settings.Granularity)
	if err != nil {
		return transcribe.Params{}, WrapError(err, ErrConfig, "invalid granularity in settings")
	}
	return transcribe.Params{
		Model:         settings.Model,
		Prompt:        settings.Prompt,
		Language:      settings.Language,
		AutoDetect:    settings.AutoDetect,
		Granularities: grans,
		Temperature:   float32(s.cfg.Transcribe.Temperature),
	}, nil
}

// gateError classifies a preparation failure: bad inputs are the
// submitter's problem, everything else points at the local tooling.
func gateError(err error) error {
	switch {
	case errors.Is(err, prepare.ErrUnsupportedExtension):
		return WrapError(err, ErrInput, "unsupported input file")
	case errors.Is(err, fs.ErrNotExist):
		return WrapError(err, ErrInput, "input file not found")
	default:
		return WrapError(err, ErrTool, "failed to prepare audio")
	}
}

func backendError(err error, unit string, index int) *PipelineError {
	errType := ErrBackend
	switch {
	case transcribe.IsAuthError(err):
		errType = ErrBackendAuth
	case transcribe.IsRateLimitError(err):
		errType = ErrBackendRateLimit
	}
	return WrapError(err, errType, "transcription failed").
		WithContext("unit", filepath.Base(unit)).
		WithContext("index", index)
}
