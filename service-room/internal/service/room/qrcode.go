package room

import (
	"context"
	"fmt"
	"net/url"

	"game-party/pkg/auth"
	"game-party/pkg/logger"
	"game-party/pkg/model"
	"game-party/pkg/storage"

	"game-party/service-room/internal/stream"

	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 256

// QrCodeJob generates the scannable join link for a room: a signed join
// token embedded in a URL, rendered to PNG and uploaded to object storage.
// Status transitions (pending, then success or error) travel through the
// ordered log like every other room event, so clients that miss one can
// recover it.
type QrCodeJob struct {
	publicBaseURL string
	issuer        *auth.JoinTokenIssuer
	storage       storage.Provider
	stream        *stream.Publisher
}

// NewQrCodeJob creates a QR generation job
func NewQrCodeJob(publicBaseURL string, issuer *auth.JoinTokenIssuer, provider storage.Provider, publisher *stream.Publisher) *QrCodeJob {
	return &QrCodeJob{
		publicBaseURL: publicBaseURL,
		issuer:        issuer,
		storage:       provider,
		stream:        publisher,
	}
}

// Generate runs the QR pipeline for joinCode. Meant to be launched on its own
// goroutine right after room creation; failures end in an ERROR status event,
// never in a failed room.
func (j *QrCodeJob) Generate(ctx context.Context, joinCode string) {
	j.publishStatus(ctx, joinCode, model.QrCodeStatusPayload{Status: model.QrCodeStatusPending})

	publicURL, err := j.generate(ctx, joinCode)
	if err != nil {
		logger.Errorf(err, "QR generation for room %s failed", joinCode)
		j.publishStatus(ctx, joinCode, model.QrCodeStatusPayload{Status: model.QrCodeStatusError})
		return
	}

	j.publishStatus(ctx, joinCode, model.QrCodeStatusPayload{
		Status: model.QrCodeStatusSuccess,
		URL:    publicURL,
	})
}

func (j *QrCodeJob) generate(ctx context.Context, joinCode string) (string, error) {
	token, err := j.issuer.Issue(joinCode)
	if err != nil {
		return "", err
	}

	joinURL := fmt.Sprintf("%s/join?code=%s&token=%s",
		j.publicBaseURL, url.QueryEscape(joinCode), url.QueryEscape(token))

	png, err := qrcode.Encode(joinURL, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR image: %w", err)
	}

	path := fmt.Sprintf("qr/%s.png", joinCode)
	if _, err := j.storage.UploadBytes(ctx, path, png, "image/png"); err != nil {
		return "", fmt.Errorf("failed to upload QR image: %w", err)
	}

	return j.storage.GetPublicURL(ctx, path)
}

func (j *QrCodeJob) publishStatus(ctx context.Context, joinCode string, payload model.QrCodeStatusPayload) {
	event, err := model.NewEvent(model.EventQrCodeStatus, joinCode, payload)
	if err != nil {
		logger.Errorf(err, "failed to build QR status event for room %s", joinCode)
		return
	}
	if err := j.stream.Enqueue(ctx, event); err != nil {
		logger.Errorf(err, "failed to enqueue QR status for room %s", joinCode)
	}
}
