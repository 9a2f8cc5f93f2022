package config

type WorkerKeyStruct struct {
	PersistViolationsQueue string
	PersistAnswersQueue    string
}

var WorkerKey = &WorkerKeyStruct{
	PersistViolationsQueue: "proctor_violations_queue",
	PersistAnswersQueue:    "persist_answers_queue",
}
