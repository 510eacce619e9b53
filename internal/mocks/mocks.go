package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/policy"
)

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, actorID int, name string, variant models.GroupVariant, description, locationScope string) (models.ChatGroup, error) {
	args := m.Called(ctx, actorID, name, variant, description, locationScope)
	var group models.ChatGroup
	if val := args.Get(0); val != nil {
		group = val.(models.ChatGroup)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) GetOrCreateDirectGroup(ctx context.Context, userA, userB int) (models.ChatGroup, error) {
	args := m.Called(ctx, userA, userB)
	var group models.ChatGroup
	if val := args.Get(0); val != nil {
		group = val.(models.ChatGroup)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID int) (models.ChatGroup, error) {
	args := m.Called(ctx, groupID)
	var group models.ChatGroup
	if val := args.Get(0); val != nil {
		group = val.(models.ChatGroup)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ArchiveGroup(ctx context.Context, groupID, actorID int) error {
	args := m.Called(ctx, groupID, actorID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) ListGroupsForUser(ctx context.Context, userID int) ([]models.ChatGroup, error) {
	args := m.Called(ctx, userID)
	var groups []models.ChatGroup
	if val := args.Get(0); val != nil {
		groups = val.([]models.ChatGroup)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) AddMember(ctx context.Context, groupID, userID int, role models.MemberRole) error {
	args := m.Called(ctx, groupID, userID, role)
	return args.Error(0)
}

func (m *GroupRepositoryMock) RemoveMember(ctx context.Context, groupID, userID int) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) MemberRole(ctx context.Context, groupID, userID int) (models.MemberRole, error) {
	args := m.Called(ctx, groupID, userID)
	var role models.MemberRole
	if val := args.Get(0); val != nil {
		role = val.(models.MemberRole)
	}
	return role, args.Error(1)
}

func (m *GroupRepositoryMock) MarkRead(ctx context.Context, groupID, userID int) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) UnreadCount(ctx context.Context, groupID, userID int) (int, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Int(0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Send(ctx context.Context, groupID, senderID int, content string, kind models.MessageKind) (models.Message, error) {
	args := m.Called(ctx, groupID, senderID, content, kind)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Edit(ctx context.Context, messageID, actorID int, newContent string) (models.Message, error) {
	args := m.Called(ctx, messageID, actorID, newContent)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID, actorID int) (models.Message, error) {
	args := m.Called(ctx, messageID, actorID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Page(ctx context.Context, groupID, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, groupID, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) Add(ctx context.Context, messageID, userID int, emoji string) error {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Error(0)
}

func (m *ReactionRepositoryMock) Remove(ctx context.Context, messageID, userID int, emoji string) error {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Error(0)
}

func (m *ReactionRepositoryMock) Aggregate(ctx context.Context, messageID int) (map[string][]int, error) {
	args := m.Called(ctx, messageID)
	var agg map[string][]int
	if val := args.Get(0); val != nil {
		agg = val.(map[string][]int)
	}
	return agg, args.Error(1)
}

type AttachmentRepositoryMock struct {
	mock.Mock
}

func (m *AttachmentRepositoryMock) Register(ctx context.Context, att models.Attachment) (models.Attachment, error) {
	args := m.Called(ctx, att)
	var stored models.Attachment
	if val := args.Get(0); val != nil {
		stored = val.(models.Attachment)
	}
	return stored, args.Error(1)
}

func (m *AttachmentRepositoryMock) GetAttachment(ctx context.Context, attachmentID int) (models.Attachment, error) {
	args := m.Called(ctx, attachmentID)
	var att models.Attachment
	if val := args.Get(0); val != nil {
		att = val.(models.Attachment)
	}
	return att, args.Error(1)
}

func (m *AttachmentRepositoryMock) ListForMessage(ctx context.Context, messageID int) ([]models.Attachment, error) {
	args := m.Called(ctx, messageID)
	var atts []models.Attachment
	if val := args.Get(0); val != nil {
		atts = val.([]models.Attachment)
	}
	return atts, args.Error(1)
}

func (m *AttachmentRepositoryMock) IncrementDownloads(ctx context.Context, attachmentID int) error {
	args := m.Called(ctx, attachmentID)
	return args.Error(0)
}

type ValidatorMock struct {
	mock.Mock
}

func (m *ValidatorMock) Validate(ctx context.Context, descriptor models.FileDescriptor, groupID int) (policy.Result, error) {
	args := m.Called(ctx, descriptor, groupID)
	var result policy.Result
	if val := args.Get(0); val != nil {
		result = val.(policy.Result)
	}
	return result, args.Error(1)
}

type ObjectStoreMock struct {
	mock.Mock
}

func (m *ObjectStoreMock) Put(ctx context.Context, path string, contents io.Reader) error {
	args := m.Called(ctx, path, contents)
	return args.Error(0)
}

func (m *ObjectStoreMock) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	args := m.Called(ctx, path)
	var rc io.ReadCloser
	if val := args.Get(0); val != nil {
		rc = val.(io.ReadCloser)
	}
	return rc, args.Error(1)
}
