package storage

// StorageInterface defines the contract for persisting reports and telemetry
// snapshots. Names are slash-separated keys such as "reports/<id>.json".
type StorageInterface interface {
	Store(name string, data []byte) error
	Retrieve(name string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(name string) error
}
