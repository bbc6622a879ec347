package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"accesspanel/internal/domain/alert"
	"accesspanel/internal/domain/member"
)

// PortraitStore keeps portrait blobs.
type PortraitStore interface {
	Put(ctx context.Context, memberID string, src io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// StillCamera takes a single frame.
type StillCamera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// ErrNoImage is returned when an upload carries no image data.
var ErrNoImage = errors.New("an image is required")

// UploadPortraitInput carries input for the orchestrator.
type UploadPortraitInput struct {
	MemberID string
	Image    io.Reader
}

// UploadPortraitDeps holds dependencies for UploadPortrait.
type UploadPortraitDeps struct {
	MemberStore MemberStore
	Portraits   PortraitStore
	Notifier    Notifier
}

// ExecuteUploadPortrait stores a portrait and links it to the member.
// PRE: Member exists; Image is a png or jpeg under the store's size limit
// POST: PortraitURL points at the new blob; the previous blob is removed
func ExecuteUploadPortrait(ctx context.Context, input UploadPortraitInput, deps UploadPortraitDeps) (member.Member, error) {
	if input.Image == nil {
		return member.Member{}, ErrNoImage
	}

	m, err := deps.MemberStore.GetByID(ctx, input.MemberID)
	if err != nil {
		return member.Member{}, err
	}

	url, err := deps.Portraits.Put(ctx, m.ID, input.Image)
	if err != nil {
		return member.Member{}, err
	}

	previous := m.PortraitURL
	m.PortraitURL = url
	if err := deps.MemberStore.Save(ctx, m); err != nil {
		if derr := deps.Portraits.Delete(ctx, url); derr != nil {
			slog.Warn("member_event", "event", "portrait_rollback_failed", "member_id", m.ID, "error", derr)
		}
		return member.Member{}, err
	}

	if previous != "" && previous != url {
		if err := deps.Portraits.Delete(ctx, previous); err != nil {
			slog.Warn("member_event", "event", "portrait_delete_failed", "member_id", m.ID, "error", err)
		}
	}

	slog.Info("member_event", "event", "portrait_saved", "member_id", m.ID)
	notifyMember(ctx, deps.Notifier, alert.KindMemberSaved, "Portrait updated", m)
	return m, nil
}

// CapturePortraitDeps holds dependencies for CapturePortrait.
type CapturePortraitDeps struct {
	UploadPortraitDeps
	Camera StillCamera
}

// ExecuteCapturePortrait takes one still from the camera and stores it as
// the member's portrait.
// PRE: Member exists; camera permission granted
// POST: Same as ExecuteUploadPortrait
func ExecuteCapturePortrait(ctx context.Context, memberID string, deps CapturePortraitDeps) (member.Member, error) {
	if _, err := deps.MemberStore.GetByID(ctx, memberID); err != nil {
		return member.Member{}, err
	}
	frame, err := deps.Camera.Capture(ctx)
	if err != nil {
		slog.Info("member_event", "event", "portrait_capture_failed", "member_id", memberID, "error", err)
		return member.Member{}, err
	}
	return ExecuteUploadPortrait(ctx, UploadPortraitInput{
		MemberID: memberID,
		Image:    bytes.NewReader(frame),
	}, deps.UploadPortraitDeps)
}
