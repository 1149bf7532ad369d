package database

type UpdateRepository interface {
	RecordUpdate(record UpdateRecord) (int64, error)
	GetRecentUpdates(limit int) ([]UpdateRecord, error)
	GetLastUpdate(section string) (*UpdateRecord, error)
	GetUpdateCount() (int, error)
}
