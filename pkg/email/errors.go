package email

import (
	"errors"
	"fmt"
)

var (
	ErrFailedToSendEmail = errors.New("mailer.errors.failed_to_send_email")
	ErrInvalidConfig     = errors.New("mailer.errors.invalid_config")

	// ErrInvalidArgument is the parent of every caller contract violation.
	ErrInvalidArgument = errors.New("mailer.errors.invalid_argument")

	ErrInvalidView             = fmt.Errorf("%w: invalid view", ErrInvalidArgument)
	ErrInvalidCallback         = fmt.Errorf("%w: callback is not valid", ErrInvalidArgument)
	ErrInvalidRecipientKind    = fmt.Errorf("%w: invalid recipient kind", ErrInvalidArgument)
	ErrCallbackNotSerializable = fmt.Errorf("%w: callback cannot be queued", ErrInvalidArgument)

	ErrContainerNotSet      = errors.New("mailer.errors.container_not_set")
	ErrCollaboratorNotFound = errors.New("mailer.errors.collaborator_not_found")
	ErrNotCollaborator      = errors.New("mailer.errors.not_a_collaborator")
	ErrBuilderNotFound      = errors.New("mailer.errors.builder_not_found")
	ErrBuilderRegistered    = errors.New("mailer.errors.builder_already_registered")
	ErrQueueNotSet          = errors.New("mailer.errors.queue_not_set")
	ErrFailedToRender       = errors.New("mailer.errors.failed_to_render_view")
	ErrInvalidQueuedMessage = errors.New("mailer.errors.invalid_queued_message")
	ErrArchiveFailed        = errors.New("mailer.errors.archive_failed")
)
