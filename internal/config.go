package internal

import (
	"flag"
	"fmt"
	"os"
)

var c *config

const (
	RunAddress    = "RUN_ADDRESS"
	DatabaseURI   = "DATABASE_URI"
	StorageDir    = "STORAGE_DIR"
	StaffLogin    = "STAFF_LOGIN"
	StaffPassword = "STAFF_PASSWORD"
	SecretKey     = "SECRET_KEY"
)

const (
	defaultRunAddress = "localhost:8080"
	defaultStorageDir = "./uploads"

	// single staff account, overridable via env
	defaultStaffLogin    = "staff"
	defaultStaffPassword = "print-shop"
	defaultSecretKey     = "secret" //todo rotateable secret
)

const (
	host     = "localhost"
	port     = 5432
	user     = "postgres"
	password = "12345"
	database = "printq"
)

type config struct {
	RunAddress    string
	DatabaseURI   string
	StorageDir    string
	StaffLogin    string
	StaffPassword string
	SecretKey     string
}

func NewConfig() *config {
	c = new(config)

	defaultConn := fmt.Sprintf("host=%s port=%d user=%s "+
		"password=%s dbname=%s sslmode=disable",
		host, port, user, password, database)

	flag.StringVar(&c.RunAddress, "a", setEnvOrDefault(RunAddress, defaultRunAddress), "host to listen on")
	flag.StringVar(&c.DatabaseURI, "d", setEnvOrDefault(DatabaseURI, defaultConn), "postgres connection path")
	flag.StringVar(&c.StorageDir, "s", setEnvOrDefault(StorageDir, defaultStorageDir), "directory for uploaded files")

	c.StaffLogin = setEnvOrDefault(StaffLogin, defaultStaffLogin)
	c.StaffPassword = setEnvOrDefault(StaffPassword, defaultStaffPassword)
	c.SecretKey = setEnvOrDefault(SecretKey, defaultSecretKey)

	flag.Parse()
	return c
}

func setEnvOrDefault(env, def string) string {
	res, e := os.LookupEnv(env)
	if !e {
		res = def
	}
	return res
}
