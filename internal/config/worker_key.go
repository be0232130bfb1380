package config

type WorkerKeyStruct struct {
	PasswordResetQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PasswordResetQueue: "notify_password_reset_queue",
}
