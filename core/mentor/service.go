package mentor

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core"
	"github.com/studentbuddy/backend/core/activation"
	"github.com/studentbuddy/backend/core/user"
)

// chatHistoryWindow bounds how much prior conversation is replayed to
// the model on each message.
const chatHistoryWindow = 50

var (
	// errors
	ErrNotFound               = errors.New("mentor not found")
	ErrSessionNotFound        = errors.New("chat session not found")
	ErrMentorAlreadyActivated = errors.New("mentor already activated")

	nowFunc = time.Now // mockable
)

type (
	// ChatModel generates mentor replies. history is the prior
	// conversation, oldest first, excluding the new message.
	ChatModel interface {
		Reply(ctx context.Context, systemPrompt string, history []ChatMessage, message string) (string, error)
	}

	// Broadcaster pushes chat events to clients subscribed to a session.
	Broadcaster interface {
		Broadcast(sessionID string, event ChatEvent)
	}

	Repository interface {
		CreateMentor(ctx context.Context, m Mentor) (Mentor, error)
		GetMentorByID(ctx context.Context, id string) (Mentor, error)
		FilterMentors(ctx context.Context, filter MentorFilter) ([]Mentor, error)
		UpdateMentor(ctx context.Context, m Mentor) (Mentor, error)
		DeleteMentorByID(ctx context.Context, id string) error

		// CreateActivation returns ErrMentorAlreadyActivated if the user
		// already activated the mentor. The check and the insert must be
		// one atomic operation.
		CreateActivation(ctx context.Context, act Activation) (Activation, error)
		GetActivationBySessionID(ctx context.Context, sessionID string) (Activation, error)
		FilterActivations(ctx context.Context, filter ActivationFilter) ([]Activation, error)
		UpdateActivation(ctx context.Context, act Activation) (Activation, error)

		CreateChatMessages(ctx context.Context, msgs ...ChatMessage) error
		// QueryChatHistory returns the session's latest messages in
		// chronological order; limit <= 0 means all.
		QueryChatHistory(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error)
	}

	Service struct {
		repo        Repository
		codeSvc     *activation.Service
		mailSvc     core.EmailService
		model       ChatModel
		broadcaster Broadcaster
		logger      core.Logger
	}

	// ChatExchange is one round trip: the student's message and the
	// mentor's reply, both persisted.
	ChatExchange struct {
		UserMessage   ChatMessage `json:"user_message"`
		MentorMessage ChatMessage `json:"mentor_message"`
	}
)

func NewService(
	repo Repository,
	codeSvc *activation.Service,
	mailSvc core.EmailService,
	model ChatModel,
	broadcaster Broadcaster,
	logger core.Logger,
) *Service {
	return &Service{
		repo:        repo,
		codeSvc:     codeSvc,
		mailSvc:     mailSvc,
		model:       model,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// --- admin CRUD ---

func (svc *Service) Create(ctx context.Context, nm NewMentor, createdBy string) (Mentor, error) {
	now := nowFunc().UTC()
	m := Mentor{
		Name:            nm.Name,
		Domain:          nm.Domain,
		Level:           nm.Level,
		Description:     nm.Description,
		AvatarURL:       nm.AvatarURL,
		SystemPrompt:    nm.SystemPrompt,
		Specializations: nm.Specializations,
		IsActive:        true,
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if nm.IsActive != nil {
		m.IsActive = *nm.IsActive
	}
	return svc.repo.CreateMentor(ctx, m)
}

func (svc *Service) Get(ctx context.Context, id string) (Mentor, error) {
	return svc.repo.GetMentorByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter MentorFilter) ([]Mentor, error) {
	return svc.repo.FilterMentors(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, um UpdateMentor) (Mentor, error) {
	m, err := svc.repo.GetMentorByID(ctx, id)
	if err != nil {
		return Mentor{}, err
	}

	if um.Name != nil {
		m.Name = *um.Name
	}
	if um.Domain != nil {
		m.Domain = *um.Domain
	}
	if um.Level != nil {
		m.Level = *um.Level
	}
	if um.Description != nil {
		m.Description = *um.Description
	}
	if um.AvatarURL != nil {
		m.AvatarURL = *um.AvatarURL
	}
	if um.SystemPrompt != nil {
		m.SystemPrompt = *um.SystemPrompt
	}
	if um.Specializations != nil {
		m.Specializations = um.Specializations
	}
	if um.IsActive != nil {
		m.IsActive = *um.IsActive
	}
	m.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateMentor(ctx, m)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteMentorByID(ctx, id)
}

// --- student surface ---

// Available lists the active mentors a student can request, system
// prompts stripped.
func (svc *Service) Available(ctx context.Context) ([]Mentor, error) {
	mentors, err := svc.repo.FilterMentors(ctx, MentorFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	for i, m := range mentors {
		mentors[i] = m.Sanitized()
	}
	return mentors, nil
}

// Activated lists the student's unlocked mentors with their sessions.
func (svc *Service) Activated(ctx context.Context, userID string) ([]ActivatedMentor, error) {
	acts, err := svc.repo.FilterActivations(ctx, ActivationFilter{UserID: userID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	activated := make([]ActivatedMentor, 0, len(acts))
	for _, act := range acts {
		m, err := svc.repo.GetMentorByID(ctx, act.MentorID)
		if err != nil {
			return nil, errors.Wrapf(err, "loading mentor %s", act.MentorID)
		}
		activated = append(activated, ActivatedMentor{Activation: act, Mentor: m.Sanitized()})
	}
	return activated, nil
}

// FilterActivations exposes activation listings to other services
// (dashboards, analytics).
func (svc *Service) FilterActivations(ctx context.Context, filter ActivationFilter) ([]Activation, error) {
	return svc.repo.FilterActivations(ctx, filter)
}

// Register starts mentor activation: it issues a fresh code and emails
// it to the student. The email is sent synchronously so a delivery
// failure surfaces instead of stranding the student without a code.
func (svc *Service) Register(ctx context.Context, usr user.User, mentorID string) error {
	m, err := svc.repo.GetMentorByID(ctx, mentorID)
	if err != nil {
		return err
	}
	if !m.IsActive {
		return ErrNotFound
	}

	acts, err := svc.repo.FilterActivations(ctx, ActivationFilter{UserID: usr.ID, MentorID: mentorID})
	if err != nil {
		return err
	}
	if len(acts) > 0 {
		return ErrMentorAlreadyActivated
	}

	code, err := svc.codeSvc.Issue(ctx, activation.Key{
		UserID:   usr.ID,
		Email:    usr.Email,
		Type:     activation.TypeMentorActivation,
		MentorID: mentorID,
	})
	if err != nil {
		return errors.Wrap(err, "issuing mentor activation code")
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject:      "Mentor Activation Code",
		TemplateName: "mentor-activation",
		TemplateData: struct {
			MentorName string
			Code       string
			ExpiresIn  int // minutes
		}{
			MentorName: m.Name,
			Code:       code.Code,
			ExpiresIn:  int(svc.codeSvc.Timeout(activation.TypeMentorActivation).Minutes()),
		},
	}
	return errors.Wrap(svc.mailSvc.SendMessage(msg), "sending mentor activation email")
}

// Activate redeems the code and opens the chat session.
func (svc *Service) Activate(ctx context.Context, usr user.User, mentorID, code string) (ActivatedMentor, error) {
	m, err := svc.repo.GetMentorByID(ctx, mentorID)
	if err != nil {
		return ActivatedMentor{}, err
	}

	key := activation.Key{
		UserID:   usr.ID,
		Email:    usr.Email,
		Type:     activation.TypeMentorActivation,
		MentorID: mentorID,
	}
	if _, err = svc.codeSvc.Redeem(ctx, key, code); err != nil {
		return ActivatedMentor{}, err
	}

	now := nowFunc().UTC()
	act := Activation{
		ID:          uuid.NewString(),
		UserID:      usr.ID,
		MentorID:    mentorID,
		SessionID:   uuid.NewString(),
		IsActive:    true,
		ActivatedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	act, err = svc.repo.CreateActivation(ctx, act)
	if err != nil {
		return ActivatedMentor{}, err
	}
	return ActivatedMentor{Activation: act, Mentor: m.Sanitized()}, nil
}

// SendMessage runs one chat round trip: persist the student's message,
// ask the model for a reply with the recent history as context, persist
// and broadcast the reply, and bump the session stats.
func (svc *Service) SendMessage(ctx context.Context, userID, sessionID, message string) (ChatExchange, error) {
	act, err := svc.getOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return ChatExchange{}, err
	}

	m, err := svc.repo.GetMentorByID(ctx, act.MentorID)
	if err != nil {
		return ChatExchange{}, err
	}

	history, err := svc.repo.QueryChatHistory(ctx, sessionID, chatHistoryWindow)
	if err != nil {
		return ChatExchange{}, err
	}

	reply, err := svc.model.Reply(ctx, m.SystemPrompt, history, message)
	if err != nil {
		return ChatExchange{}, errors.Wrap(err, "generating mentor reply")
	}

	now := nowFunc().UTC()
	userMsg := ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    act.UserID,
		MentorID:  act.MentorID,
		Sender:    SenderUser,
		Message:   message,
		CreatedAt: now,
	}
	mentorMsg := ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    act.UserID,
		MentorID:  act.MentorID,
		Sender:    SenderMentor,
		Message:   reply,
		CreatedAt: now,
	}
	if err = svc.repo.CreateChatMessages(ctx, userMsg, mentorMsg); err != nil {
		return ChatExchange{}, err
	}

	act.TotalMessages += 2
	act.LastInteraction = &now
	act.UpdatedAt = now
	if _, err = svc.repo.UpdateActivation(ctx, act); err != nil {
		return ChatExchange{}, err
	}

	if svc.broadcaster != nil {
		svc.broadcaster.Broadcast(sessionID, ChatEvent{
			SessionID: sessionID,
			Sender:    SenderMentor,
			Message:   reply,
			Timestamp: now,
		})
	}
	return ChatExchange{UserMessage: userMsg, MentorMessage: mentorMsg}, nil
}

// History returns the full session transcript, oldest first.
func (svc *Service) History(ctx context.Context, userID, sessionID string) ([]ChatMessage, error) {
	if _, err := svc.getOwnedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return svc.repo.QueryChatHistory(ctx, sessionID, 0)
}

// OwnsSession reports whether the session belongs to the user; used by
// the realtime endpoint before subscribing a socket.
func (svc *Service) OwnsSession(ctx context.Context, userID, sessionID string) error {
	_, err := svc.getOwnedSession(ctx, userID, sessionID)
	return err
}

// getOwnedSession hides other users' sessions behind ErrSessionNotFound.
func (svc *Service) getOwnedSession(ctx context.Context, userID, sessionID string) (Activation, error) {
	act, err := svc.repo.GetActivationBySessionID(ctx, sessionID)
	if err != nil {
		return Activation{}, err
	}
	if act.UserID != userID || !act.IsActive {
		return Activation{}, ErrSessionNotFound
	}
	return act, nil
}
