package email

const (
	subjectPartialFailureFmt = "[action required] Lead %s won with order %s but not recorded"
)
