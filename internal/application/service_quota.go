package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
	"github.com/edgefleet/fleetcore/internal/metrics"
)

// Quota checks compute live usage immediately before the caller's write and
// compare it to the organization's ceiling. The check is advisory: two
// concurrent creations that both pass before either commits can overshoot
// the ceiling by a small amount. That race is accepted; no per-org
// serialization is applied.

func (s *Service) CheckDeviceQuota(ctx context.Context, orgID uuid.UUID) (domain.QuotaStatus, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return domain.QuotaStatus{}, err
	}
	used, err := s.devices.CountByOrg(ctx, orgID)
	if err != nil {
		return domain.QuotaStatus{}, err
	}
	return domain.QuotaStatus{Allowed: used < org.MaxDevices, Used: used, Max: org.MaxDevices}, nil
}

func (s *Service) CheckStorageQuota(ctx context.Context, orgID uuid.UUID) (domain.QuotaStatus, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return domain.QuotaStatus{}, err
	}
	used, err := s.logs.StoredBytesByOrg(ctx, orgID)
	if err != nil {
		return domain.QuotaStatus{}, err
	}
	return domain.QuotaStatus{Allowed: used < org.MaxStorageBytes, Used: used, Max: org.MaxStorageBytes}, nil
}

// CheckUserQuota always allows for enterprise-plan organizations; the user
// ceiling is unenforced on that plan.
func (s *Service) CheckUserQuota(ctx context.Context, orgID uuid.UUID) (domain.QuotaStatus, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return domain.QuotaStatus{}, err
	}
	used, err := s.users.CountByOrg(ctx, orgID)
	if err != nil {
		return domain.QuotaStatus{}, err
	}
	if org.Plan == domain.PlanEnterprise {
		return domain.QuotaStatus{Allowed: true, Used: used, Max: org.MaxUsers}, nil
	}
	return domain.QuotaStatus{Allowed: used < org.MaxUsers, Used: used, Max: org.MaxUsers}, nil
}

// QuotaReport aggregates the three resource quotas for one organization.
type QuotaReport struct {
	Devices domain.QuotaStatus `json:"devices"`
	Storage domain.QuotaStatus `json:"storage"`
	Users   domain.QuotaStatus `json:"users"`
}

// OrgQuota reports current usage against ceilings for the resolved org.
func (s *Service) OrgQuota(ctx context.Context, actor domain.Identity, orgID uuid.UUID) (QuotaReport, error) {
	resolved, err := s.resolveOrg(actor, orgID, domain.RoleViewer)
	if err != nil {
		return QuotaReport{}, err
	}
	devices, err := s.CheckDeviceQuota(ctx, resolved)
	if err != nil {
		return QuotaReport{}, err
	}
	storage, err := s.CheckStorageQuota(ctx, resolved)
	if err != nil {
		return QuotaReport{}, err
	}
	users, err := s.CheckUserQuota(ctx, resolved)
	if err != nil {
		return QuotaReport{}, err
	}
	return QuotaReport{Devices: devices, Storage: storage, Users: users}, nil
}

func (s *Service) EnforceDeviceQuota(ctx context.Context, orgID uuid.UUID) error {
	status, err := s.CheckDeviceQuota(ctx, orgID)
	if err != nil {
		return err
	}
	return s.enforce(ctx, orgID, "devices", status)
}

func (s *Service) EnforceStorageQuota(ctx context.Context, orgID uuid.UUID) error {
	status, err := s.CheckStorageQuota(ctx, orgID)
	if err != nil {
		return err
	}
	return s.enforce(ctx, orgID, "storage", status)
}

func (s *Service) EnforceUserQuota(ctx context.Context, orgID uuid.UUID) error {
	status, err := s.CheckUserQuota(ctx, orgID)
	if err != nil {
		return err
	}
	return s.enforce(ctx, orgID, "users", status)
}

// enforce applies the hard ceiling and, on every call above the warning
// ratio, emits a quota.warning event. The warning is deliberately not
// debounced: callers above the ratio hear it on each enforcement.
func (s *Service) enforce(ctx context.Context, orgID uuid.UUID, resource string, status domain.QuotaStatus) error {
	if !status.Allowed {
		metrics.QuotaDenials.WithLabelValues(resource).Inc()
		s.dispatcher.Dispatch(ctx, orgID, domain.EventQuotaExceeded, map[string]any{
			"resource": resource,
			"used":     status.Used,
			"max":      status.Max,
		})
		return &domain.QuotaExceededError{Resource: resource, Used: status.Used, Max: status.Max}
	}
	if status.Max > 0 && float64(status.Used) >= s.cfg.QuotaWarningRatio*float64(status.Max) {
		s.dispatcher.Dispatch(ctx, orgID, domain.EventQuotaWarning, map[string]any{
			"resource": resource,
			"used":     status.Used,
			"max":      status.Max,
		})
	}
	return nil
}
