package memory

import (
	"context"
	"sync"

	"partner-quiz-service/internal/domain"
)

// PaymentGateway approves every charge unless Decline is set. It records
// the charges it accepted so tests and local runs can inspect them.
type PaymentGateway struct {
	mu      sync.Mutex
	charges []domain.Charge
	decline error
}

func NewPaymentGateway() *PaymentGateway {
	return &PaymentGateway{}
}

// Decline makes subsequent charges fail with err; nil approves again.
func (p *PaymentGateway) Decline(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decline = err
}

func (p *PaymentGateway) Charge(_ context.Context, charge domain.Charge) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.decline != nil {
		return p.decline
	}
	p.charges = append(p.charges, charge)
	return nil
}

func (p *PaymentGateway) Charges() []domain.Charge {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Charge(nil), p.charges...)
}

// InviteOutbox is a Notifier that keeps invitations in memory.
type InviteOutbox struct {
	mu      sync.Mutex
	invites []domain.Invite
	fail    error
}

func NewInviteOutbox() *InviteOutbox {
	return &InviteOutbox{}
}

// Fail makes subsequent sends fail with err; nil delivers again.
func (o *InviteOutbox) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail = err
}

func (o *InviteOutbox) SendInvite(_ context.Context, invite domain.Invite) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.invites = append(o.invites, invite)
	return nil
}

func (o *InviteOutbox) Sent() []domain.Invite {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.Invite(nil), o.invites...)
}
