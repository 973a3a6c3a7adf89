package interfaces

type Services struct {
	Sessions SessionService
}
