package postgres

// Store bundles the PostgreSQL repositories into a repository.Store.
type Store struct {
	*DB
	*PlantRepo
	*TaskRepo
	*ProfileRepo
	*InsightRepo
}

// NewStore constructs all repositories over db.
func NewStore(db *DB) *Store {
	return &Store{
		DB:          db,
		PlantRepo:   NewPlantRepo(db),
		TaskRepo:    NewTaskRepo(db),
		ProfileRepo: NewProfileRepo(db),
		InsightRepo: NewInsightRepo(db),
	}
}
