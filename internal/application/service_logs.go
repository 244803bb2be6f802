package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
)

// IngestLog stores one device log entry. The raw payload first passes the
// decryption gate; duplicate detection runs against the supplied checksum
// and, when the gate decrypted the payload, again against the recomputed
// plaintext checksum, since two distinct ciphertexts can carry the same
// plaintext. Storage quota is enforced before the write.
func (s *Service) IngestLog(ctx context.Context, actor domain.Identity, req IngestLogRequest) (IngestLogResponse, error) {
	device, err := s.devices.GetByID(ctx, req.DeviceID)
	if err != nil {
		return IngestLogResponse{}, err
	}
	if _, err := s.resolveOrg(actor, device.OrgID, domain.RoleTechnician); err != nil {
		return IngestLogResponse{}, err
	}
	if req.Payload == "" {
		return IngestLogResponse{}, fmt.Errorf("%w: payload is required", domain.ErrInvalidInput)
	}

	checksum := strings.ToLower(strings.TrimSpace(req.Checksum))
	if checksum == "" {
		sum := sha256.Sum256([]byte(req.Payload))
		checksum = hex.EncodeToString(sum[:])
	}

	if dup, err := s.logs.ExistsByChecksum(ctx, device.DeviceID, checksum); err != nil {
		return IngestLogResponse{}, err
	} else if dup {
		return IngestLogResponse{}, domain.ErrDuplicateLog
	}

	if err := s.EnforceStorageQuota(ctx, device.OrgID); err != nil {
		return IngestLogResponse{}, err
	}

	prepared, err := s.gate.Prepare(ctx, device.DeviceID, req.Payload, checksum)
	if err != nil {
		return IngestLogResponse{}, err
	}
	if prepared.Decrypted {
		// A second duplicate can only surface after decryption.
		if dup, err := s.logs.ExistsByChecksum(ctx, device.DeviceID, prepared.Checksum); err != nil {
			return IngestLogResponse{}, err
		} else if dup {
			return IngestLogResponse{}, domain.ErrDuplicateLog
		}
	}

	entry := domain.DeviceLog{
		LogID:      uuid.New(),
		DeviceID:   device.DeviceID,
		OrgID:      device.OrgID,
		Level:      normalizeLevel(req.Level),
		Payload:    prepared.Payload,
		Checksum:   prepared.Checksum,
		SizeBytes:  int64(len(prepared.Payload)),
		Decrypted:  prepared.Decrypted,
		IngestedAt: s.nowFn(),
	}
	if err := s.logs.Insert(ctx, entry); err != nil {
		return IngestLogResponse{}, err
	}

	slog.Default().InfoContext(ctx, "device log ingested",
		"module", "application",
		"operation", "ingest_log",
		"outcome", "success",
		"device_id", device.DeviceID,
		"size_bytes", entry.SizeBytes,
		"decrypted", entry.Decrypted,
	)
	return IngestLogResponse{LogID: entry.LogID, Checksum: entry.Checksum, Decrypted: entry.Decrypted}, nil
}

// ListLogs returns a device's stored logs with basic pagination.
func (s *Service) ListLogs(ctx context.Context, actor domain.Identity, deviceID uuid.UUID, limit, offset int) ([]domain.DeviceLog, error) {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolveOrg(actor, device.OrgID, domain.RoleViewer); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.logs.ListByDevice(ctx, deviceID, limit, offset)
}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return "debug"
	case "warn", "warning":
		return "warn"
	case "error":
		return "error"
	default:
		return "info"
	}
}
