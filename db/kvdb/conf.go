package kvdb

type Conf struct {
	Type string `json:"type"` // "sqlite" | "memory" | "redis"
	Path string `json:"path"` // sqlite database file. ":memory:" for a volatile db
	Host string `json:"host"`
	Port int    `json:"port"`
	PW   string `json:"pw"`
	DB   int    `json:"db"` // optional db number e.g. redis
}
