package container

import "errors"

var (
	ErrServiceNotFound = errors.New("container.errors.service_not_found")
	ErrServiceFactory  = errors.New("container.errors.service_factory_failed")
	ErrServiceType     = errors.New("container.errors.unexpected_service_type")
)
