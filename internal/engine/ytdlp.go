package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"fetchd/internal/logging"
	"fetchd/internal/textutil"
)

// YTDLP resolves media through the yt-dlp binary.
type YTDLP struct {
	logger *slog.Logger
}

// NewYTDLP constructs a yt-dlp backed resolver.
func NewYTDLP(logger *slog.Logger) *YTDLP {
	return &YTDLP{logger: logging.NewComponentLogger(logger, "engine")}
}

// Resolve runs yt-dlp for the request and reports the produced file. Engine
// refusals surface as ErrRejected; context cancellation passes through
// unwrapped so callers can distinguish an abort from a failure.
func (y *YTDLP) Resolve(ctx context.Context, req Request) (*Result, error) {
	dl := ytdlp.New().
		NoPlaylist().
		RestrictFilenames().
		ForceOverwrites().
		Format(Selector(req.Format, req.Quality)).
		Output(filepath.Join(req.DestDir, "%(title)s.%(ext)s"))

	if target := AudioTarget(req.Format); target != "" {
		dl = dl.ExtractAudio().AudioFormat(target)
	}

	started := time.Now()
	y.logger.Info("engine dispatch",
		logging.String("url", req.SourceURL),
		logging.String("format", req.Format),
		logging.String("quality", req.Quality))

	result, err := dl.Run(ctx, req.SourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		y.logger.Warn("engine rejected request",
			logging.String("url", req.SourceURL),
			logging.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	res, err := y.describe(result)
	if err != nil {
		return nil, err
	}

	y.logger.Info("engine finished",
		logging.String("title", res.Title),
		logging.Int64("bytes", res.ByteSize),
		logging.Duration("elapsed", time.Since(started)))
	return res, nil
}

func (y *YTDLP) describe(result *ytdlp.Result) (*Result, error) {
	if result == nil {
		return nil, errors.New("engine returned no result")
	}

	info, err := result.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("read extracted info: %w", err)
	}
	if len(info) == 0 {
		return nil, errors.New("engine reported no extracted info")
	}

	res := &Result{}
	if info[0].Title != nil {
		res.Title = *info[0].Title
	}
	if info[0].Filename != nil {
		res.OutputPath = *info[0].Filename
	}
	if res.OutputPath == "" {
		return nil, errors.New("engine reported no output file")
	}
	if res.Title == "" {
		res.Title = textutil.TitleFromFilename(res.OutputPath)
	}

	if stat, statErr := os.Stat(res.OutputPath); statErr == nil {
		res.ByteSize = stat.Size()
	}
	return res, nil
}
