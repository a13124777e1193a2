package alert

import "context"

// Facade is the single entry point other modules use to raise alerts.
// Everything crosses it by value.
type Facade struct {
	service *Service
}

func NewFacade(service *Service) *Facade {
	return &Facade{service: service}
}

// CreateAlert stores a new alert and returns its id
func (f *Facade) CreateAlert(ctx context.Context, title, message, severity, alertType string, accountID, productID, warehouseID int64) (string, error) {
	a, err := f.service.Create(ctx, title, message, severity, alertType, accountID, productID, warehouseID)
	if err != nil {
		return "", err
	}
	return a.ID, nil
}
