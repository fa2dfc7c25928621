package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/google/uuid"
	"github.com/yangwenmai/reelcast/internal/model"
	"github.com/yangwenmai/reelcast/internal/source"
	"github.com/yangwenmai/reelcast/internal/workspace"
)

// Each record below is the state a run holds after a stage succeeds. A record
// embeds its predecessor, so a stage can only be reached with every earlier
// result in hand.

type authenticated struct {
	session *Session
}

type contentFetched struct {
	authenticated
	content *CreatorContentSet
}

type styleKnown struct {
	contentFetched
	style StyleDescriptor
}

type productKnown struct {
	styleKnown
	product ProductInfo
}

type reviewReady struct {
	productKnown
	review ReviewText
}

type scriptReady struct {
	reviewReady
	script ScriptText
}

type voiceReady struct {
	scriptReady
	voice VoiceClip
}

// ---------------------------------------------------------------------------
// Authenticate
// ---------------------------------------------------------------------------

func (p *Pipeline) authenticate(ctx context.Context, ws *workspace.Workspace, creds source.Credentials) (authenticated, error) {
	sess, err := p.auth.Login(ctx, creds)
	if err != nil {
		return authenticated{}, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return authenticated{session: &Session{Source: sess, Workspace: ws}}, nil
}

// ---------------------------------------------------------------------------
// Fetch creator content
// ---------------------------------------------------------------------------

func (p *Pipeline) fetchContent(ctx context.Context, a authenticated, creator string, maxPosts int) (contentFetched, error) {
	set, err := p.fetcher.Fetch(ctx, a.session, creator, maxPosts)
	if err != nil {
		return contentFetched{}, err
	}
	return contentFetched{authenticated: a, content: set}, nil
}

// ---------------------------------------------------------------------------
// Analyze style
// ---------------------------------------------------------------------------

func (p *Pipeline) analyzeStyle(ctx context.Context, runID string, cf contentFetched) styleKnown {
	style := p.style.Analyze(ctx, cf.content.Captions())
	p.record(ctx, runID, model.ArtifactStyle, style)
	return styleKnown{contentFetched: cf, style: style}
}

// ---------------------------------------------------------------------------
// Extract product
// ---------------------------------------------------------------------------

func (p *Pipeline) extractProduct(ctx context.Context, runID string, sk styleKnown, url string) (productKnown, error) {
	info, err := p.products.Extract(ctx, url)
	if err != nil {
		return productKnown{}, err
	}
	p.record(ctx, runID, model.ArtifactProduct, info)
	return productKnown{styleKnown: sk, product: *info}, nil
}

// ---------------------------------------------------------------------------
// Generate review and script
// ---------------------------------------------------------------------------

func (p *Pipeline) generateReview(ctx context.Context, runID string, pk productKnown) (reviewReady, error) {
	review, err := p.reviews.Generate(ctx, pk.product, pk.style)
	if err != nil {
		return reviewReady{}, err
	}
	p.record(ctx, runID, model.ArtifactReview, model.TextArtifact{Text: string(review)})
	return reviewReady{productKnown: pk, review: review}, nil
}

func (p *Pipeline) generateScript(ctx context.Context, runID string, rr reviewReady) (scriptReady, error) {
	script, err := p.scripts.Generate(ctx, rr.review, rr.style)
	if err != nil {
		return scriptReady{}, err
	}
	p.record(ctx, runID, model.ArtifactScript, model.TextArtifact{Text: string(script)})
	return scriptReady{reviewReady: rr, script: script}, nil
}

// ---------------------------------------------------------------------------
// Synthesize voice
// ---------------------------------------------------------------------------

func (p *Pipeline) synthesizeVoice(ctx context.Context, sr scriptReady, profile string) (voiceReady, error) {
	clip, err := p.voice.Synthesize(ctx, sr.script, profile)
	if err != nil {
		return voiceReady{}, err
	}
	return voiceReady{scriptReady: sr, voice: *clip}, nil
}

// ---------------------------------------------------------------------------
// Publish
// ---------------------------------------------------------------------------

// publish copies the final artifacts out of the workspace into the sink.
func (p *Pipeline) publish(ctx context.Context, runID string, vr voiceReady) (*Result, error) {
	put := func(name string, data []byte) (string, error) {
		loc, err := p.sink.Put(ctx, path.Join(runID, name), data)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrPublish, name, err)
		}
		return loc, nil
	}

	reviewLoc, err := put("review.txt", []byte(vr.review))
	if err != nil {
		return nil, err
	}
	scriptLoc, err := put("script.txt", []byte(vr.script))
	if err != nil {
		return nil, err
	}
	voiceName := "voice." + vr.voice.Ext()
	voiceLoc, err := put(voiceName, vr.voice.Data)
	if err != nil {
		return nil, err
	}

	p.record(ctx, runID, model.ArtifactVoice, model.VoiceArtifact{
		Key:         path.Join(runID, voiceName),
		Location:    voiceLoc,
		ContentType: vr.voice.ContentType,
		Profile:     vr.voice.Profile,
		Bytes:       len(vr.voice.Data),
	})

	return &Result{
		RunID:          runID,
		VideoCount:     vr.content.Len(),
		PostsExamined:  vr.content.Examined,
		Style:          vr.style,
		Product:        vr.product,
		Review:         vr.review,
		Script:         vr.script,
		ReviewLocation: reviewLoc,
		ScriptLocation: scriptLoc,
		VoiceLocation:  voiceLoc,
	}, nil
}

// record stores an intermediate result when a recorder is configured. The
// history is informational, so a failed write is logged and the run continues.
func (p *Pipeline) record(ctx context.Context, runID, artifactType string, v any) {
	if p.artifacts == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Warn("encode artifact", "run_id", runID, "type", artifactType, "error", err)
		return
	}
	a := model.NewArtifact(uuid.NewString(), runID, artifactType, string(payload))
	if err := p.artifacts.UpsertArtifact(context.WithoutCancel(ctx), a); err != nil {
		slog.Warn("save artifact", "run_id", runID, "type", artifactType, "error", err)
	}
}
