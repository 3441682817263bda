package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task types
const (
	TypeEmailSend           = "email:send"
	TypeCertificateGenerate = "certificate:generate"
	TypeProgressExpireSweep = "progress:expire_sweep"
)

// Queue names and their weights on the worker
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues priority weights handed to the asynq server.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// EmailPayload email:send
type EmailPayload struct {
	To       string            `json:"to"`
	Name     string            `json:"name,omitempty"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data,omitempty"`
	// AttachmentKey storage key attached as AttachmentName
	AttachmentKey  string `json:"attachment_key,omitempty"`
	AttachmentName string `json:"attachment_name,omitempty"`
	// CertificateID marks the certificate as emailed once delivered
	CertificateID string `json:"certificate_id,omitempty"`
}

// CertificatePayload certificate:generate
type CertificatePayload struct {
	CertificateID string `json:"certificate_id"`
}

// NewEmailTask builds an email:send task.
func NewEmailTask(p EmailPayload) (*asynq.Task, error) {
	if p.To == "" || p.Template == "" {
		return nil, fmt.Errorf("queue: email task needs a recipient and a template")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailSend, payload, asynq.Queue(QueueCritical)), nil
}

// NewCertificateTask builds a certificate:generate task.
func NewCertificateTask(certificateID string) (*asynq.Task, error) {
	if certificateID == "" {
		return nil, fmt.Errorf("queue: certificate task needs a certificate id")
	}
	payload, err := json.Marshal(CertificatePayload{CertificateID: certificateID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCertificateGenerate, payload, asynq.Queue(QueueDefault)), nil
}

// NewExpireSweepTask builds the periodic progress:expire_sweep task.
func NewExpireSweepTask() *asynq.Task {
	return asynq.NewTask(TypeProgressExpireSweep, nil, asynq.Queue(QueueLow), asynq.MaxRetry(0))
}

func decode(t *asynq.Task, v interface{}) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}
