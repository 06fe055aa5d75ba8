package services

import (
	"bytes"
	"fmt"
	"image/png"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/cyl19970726/Code3/core/bounty"
	"github.com/cyl19970726/Code3/models"
)

// QRCodeService renders payment QR codes for vaults.
type QRCodeService struct {
	size int
}

// NewQRCodeService creates a QR code service producing size x size PNGs.
func NewQRCodeService(size int) *QRCodeService {
	if size <= 0 {
		size = 256
	}
	return &QRCodeService{size: size}
}

// VaultURI is the payload encoded in a vault QR code.
func VaultURI(vault bounty.Address, amount, bountyID uint64) string {
	return fmt.Sprintf("bounty:%s?amount=%d&id=%d", vault, amount, bountyID)
}

// VaultQR generates a PNG QR code for a bounty vault.
func (s *QRCodeService) VaultQR(vault bounty.Address, amount, bountyID uint64) ([]byte, error) {
	qr, err := qrcode.New(VaultURI(vault, amount, bountyID), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(s.size)); err != nil {
		return nil, fmt.Errorf("failed to encode QR code to PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// HealthService reports liveness.
type HealthService struct {
	driver  string
	started time.Time
}

// NewHealthService creates a health service for the given store driver.
func NewHealthService(driver string) *HealthService {
	return &HealthService{driver: driver, started: time.Now()}
}

// GetHealthStatus returns current health status.
func (s *HealthService) GetHealthStatus() *models.HealthResponse {
	return &models.HealthResponse{
		Status:        "healthy",
		Store:         s.driver,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Timestamp:     time.Now().Unix(),
	}
}
