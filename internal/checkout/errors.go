package checkout

import "errors"

var (
	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("checkout: session closed")
	// ErrNotLoaded means the catalog has not been loaded successfully.
	ErrNotLoaded = errors.New("checkout: services not loaded")
	// ErrUnknownService means the requested id is not in the catalog.
	ErrUnknownService = errors.New("checkout: unknown service")
	// ErrServiceLocked means the selection came from idprod and is locked.
	ErrServiceLocked = errors.New("checkout: service selection is locked")
	// ErrNameLocked means the name was resolved by phone lookup.
	ErrNameLocked = errors.New("checkout: name resolved by lookup is read-only")
	// ErrNoServiceSelected fails submission before any network call.
	ErrNoServiceSelected = errors.New("checkout: no service selected")
	// ErrInvalidExternalID fails submission before any network call.
	ErrInvalidExternalID = errors.New("checkout: external id must be a positive number")
	// ErrSubmitInProgress rejects a second submit while one is in flight.
	ErrSubmitInProgress = errors.New("checkout: submission in progress")
	// ErrSnapshotNotFound is returned by SnapshotStore.Load for unknown ids.
	ErrSnapshotNotFound = errors.New("checkout: snapshot not found")
)

// Customer-facing messages.
const (
	MsgStatusSuccess         = "¡Pago realizado con éxito! Gracias por tu compra."
	MsgStatusCancel          = "El pago fue cancelado. Puedes intentarlo de nuevo cuando quieras."
	MsgServicesFallback      = "No se pudieron cargar los servicios."
	MsgNoService             = "Selecciona un servicio para continuar."
	MsgInvalidExternalID     = "Ingresa un teléfono registrado para continuar."
	MsgCreateSessionFallback = "Error al crear la sesión de pago"
	MsgSubmitFallback        = "Ocurrió un error al iniciar el pago."
)
