package types

import "errors"

// EndpointMeta identifies an endpoint for logging and reporting.
type EndpointMeta struct {
	// Role is the endpoint role.
	Role Role
	// EndpointID distinguishes endpoints of the same role across processes.
	EndpointID string
	// TransferID is set once a transfer is in flight, empty otherwise.
	TransferID string
}

// Validate checks that the metadata is usable.
func (m *EndpointMeta) Validate() error {
	if m == nil {
		return errors.New("endpoint metadata is required")
	}
	if m.Role != RoleCoordinator && m.Role != RoleWorker {
		return errors.New("role must be coordinator or worker")
	}
	if m.EndpointID == "" {
		return errors.New("endpoint_id is required")
	}
	return nil
}
