package domain

import "errors"

var (
	// ErrAlreadySubscribed indicates the lab already has a trial, active or pending subscription.
	ErrAlreadySubscribed = errors.New("lab already has a current subscription")

	// ErrPlanNotFound indicates the plan does not exist or is not active.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrNotPending indicates the subscription is not awaiting payment.
	ErrNotPending = errors.New("subscription is not pending payment")

	// ErrSubscriptionNotFound indicates no subscription exists with the given ID.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrNoActiveSubscription indicates the lab has no current subscription.
	ErrNoActiveSubscription = errors.New("no active subscription")

	// ErrLabNotFound indicates no lab exists with the given ID.
	ErrLabNotFound = errors.New("lab not found")

	// ErrInvalidTransition indicates a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid subscription status transition")

	// ErrInvalidPlan indicates a plan violates catalog invariants.
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrInvalidPaymentProvider indicates an unknown payment provider.
	ErrInvalidPaymentProvider = errors.New("invalid payment provider")
)
