package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/yangwenmai/reelcast/internal/media"
	"github.com/yangwenmai/reelcast/internal/source"
	"github.com/yangwenmai/reelcast/internal/workspace"
)

// Post processing steps, reported when a post is skipped.
const (
	postStepDownload = "download"
	postStepProbe    = "probe"
	postStepExtract  = "extract_audio"
)

// postError records which step of post processing failed.
type postError struct {
	Step string
	Err  error
}

func (e *postError) Error() string { return e.Step + ": " + e.Err.Error() }
func (e *postError) Unwrap() error { return e.Err }

// ContentFetcher walks a creator's posts newest first and turns up to a
// requested number of video posts into local video and audio files.
type ContentFetcher struct {
	source PostSource
	media  MediaTool
}

// NewContentFetcher creates a fetcher backed by the given post source and media tool.
func NewContentFetcher(src PostSource, mt MediaTool) *ContentFetcher {
	return &ContentFetcher{source: src, media: mt}
}

// Fetch collects at most maxCount video posts for creator. Non-video posts are
// skipped without counting toward maxCount. A video post whose processing fails
// is logged, has its partial files removed, and is skipped. A post seen earlier
// in the stream is skipped as well. Only a failure of
// the post listing itself is returned, wrapping ErrFetch.
func (f *ContentFetcher) Fetch(ctx context.Context, sess *Session, creator string, maxCount int) (*CreatorContentSet, error) {
	if maxCount <= 0 {
		return nil, fmt.Errorf("%w: max count must be positive, got %d", ErrFetch, maxCount)
	}
	if sess == nil || sess.Workspace == nil {
		return nil, fmt.Errorf("%w: no session", ErrFetch)
	}

	set := &CreatorContentSet{}
	// Overlapping pages can repeat a post; a second pass would reuse its paths.
	seen := make(map[string]struct{})
	for post, err := range f.source.Posts(ctx, sess.Source, creator) {
		if err != nil {
			return nil, fmt.Errorf("%w: list posts of %q: %w", ErrFetch, creator, err)
		}
		set.Examined++
		if !post.IsVideo {
			continue
		}
		if _, dup := seen[post.Key()]; dup {
			slog.Debug("skipping repeated post", "creator", creator, "post_id", post.Key())
			continue
		}
		seen[post.Key()] = struct{}{}

		art, err := f.process(ctx, sess, post)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrFetch, ctx.Err())
			}
			step := ""
			var pe *postError
			if errors.As(err, &pe) {
				step = pe.Step
			}
			slog.Warn("skipping post", "creator", creator, "post_id", post.Key(), "step", step, "error", err)
			continue
		}

		set.add(*art)
		if set.Len() >= maxCount {
			break
		}
	}

	slog.Info("content fetched", "creator", creator, "videos", set.Len(), "examined", set.Examined)
	return set, nil
}

// process downloads the video, checks it has an audio stream, and extracts
// that stream. On failure every file it created is removed.
func (f *ContentFetcher) process(ctx context.Context, sess *Session, post source.Post) (*PostArtifact, error) {
	ws := sess.Workspace
	key := post.Key()
	videoPath, err := ws.VideoPath(key)
	if err != nil {
		return nil, &postError{Step: postStepDownload, Err: err}
	}
	audioPath, err := ws.AudioPath(key)
	if err != nil {
		return nil, &postError{Step: postStepDownload, Err: err}
	}

	cleanup := func() {
		removeQuietly(ws, videoPath)
		removeQuietly(ws, audioPath)
	}

	if err := f.download(ctx, sess.Source, post, videoPath); err != nil {
		cleanup()
		return nil, &postError{Step: postStepDownload, Err: err}
	}

	info, err := f.media.Probe(ctx, videoPath)
	if err == nil && !info.HasAudio {
		err = media.ErrNoAudioStream
	}
	if err != nil {
		cleanup()
		return nil, &postError{Step: postStepProbe, Err: err}
	}

	if err := f.media.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		cleanup()
		return nil, &postError{Step: postStepExtract, Err: err}
	}

	return &PostArtifact{
		ID:        key,
		Caption:   post.Caption,
		VideoPath: videoPath,
		AudioPath: audioPath,
		Duration:  info.Duration,
	}, nil
}

func (f *ContentFetcher) download(ctx context.Context, sess *source.Session, post source.Post, dst string) error {
	rc, err := f.source.OpenVideo(ctx, sess, post)
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return out.Close()
}

func removeQuietly(ws *workspace.Workspace, path string) {
	if err := ws.Remove(path); err != nil {
		slog.Warn("remove partial file", "path", path, "error", err)
	}
}
