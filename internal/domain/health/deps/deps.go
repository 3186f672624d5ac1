package deps

// ClientPool exposes the size of the live Telegram client pool
type ClientPool interface {
	ActiveClients() int
}
