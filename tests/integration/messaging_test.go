package integration_test

import (
	"context"
	"testing"

	"github.com/chatly-hq/chatly/internal/authz"
	"github.com/chatly-hq/chatly/internal/bot"
	"github.com/chatly-hq/chatly/internal/channels"
	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/chatly-hq/chatly/internal/events"
	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/chatly-hq/chatly/internal/infra"
	"github.com/chatly-hq/chatly/internal/infra/db"
	"github.com/chatly-hq/chatly/internal/membership"
	"github.com/chatly-hq/chatly/internal/messages"
	"github.com/chatly-hq/chatly/internal/polls"
	"github.com/chatly-hq/chatly/internal/reactions"
	"github.com/chatly-hq/chatly/internal/unread"
	"github.com/chatly-hq/chatly/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	db       *db.DB
	channels *channels.Service
	members  *membership.Service
	messages *messages.Service
	reacts   *reactions.Service
	polls    *polls.Service
	unread   *unread.Service
	bots     *bot.Service
	msgRepo  *messages.Repository
	chRepo   *channels.Repository
}

func setup(t *testing.T) *fixture {
	t.Helper()

	database := testutil.SetupTestDB(t)
	t.Cleanup(database.Close)

	logger := zap.NewNop()
	hub := events.NewHub(logger)

	chRepo := channels.NewRepository(database.Pool)
	memberRepo := membership.NewRepository(database.Pool)
	msgRepo := messages.NewRepository(database.Pool, infra.NewSnowflakeGenerator(1))
	pollRepo := polls.NewRepository(database.Pool)

	memberSvc := membership.NewService(memberRepo, chRepo, hub, nil, nil, logger)
	authzSvc := authz.NewService(chRepo, memberRepo)
	channelSvc := channels.NewService(chRepo, memberSvc, logger)
	messageSvc := messages.NewService(msgRepo, chRepo, memberSvc, authzSvc, pollRepo, hub, nil, nil, logger)
	reactionSvc := reactions.NewService(reactions.NewRepository(database.Pool), database.Pool, authzSvc, hub, logger)
	pollSvc := polls.NewService(pollRepo, logger)
	unreadSvc := unread.NewService(unread.NewRepository(database.Pool))

	botSvc := bot.NewService(bot.NewRepository(database.Pool), memberSvc, channelSvc, messageSvc, msgRepo, nil, logger)

	return &fixture{
		db:       database,
		channels: channelSvc,
		members:  memberSvc,
		messages: messageSvc,
		reacts:   reactionSvc,
		polls:    pollSvc,
		unread:   unreadSvc,
		bots:     botSvc,
		msgRepo:  msgRepo,
		chRepo:   chRepo,
	}
}

func asUser(userID uuid.UUID) context.Context {
	return identity.WithActor(context.Background(), identity.Actor{UserID: userID})
}

func TestChannelCreationMakesCreatorAdmin(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")

	ch, err := f.channels.Create(asUser(alice), "general", channels.TypePublic)
	require.NoError(t, err)

	m, err := f.members.GetMember(context.Background(), ch.ID, alice)
	require.NoError(t, err)
	assert.True(t, m.IsAdmin)
}

func TestPrivateChannelJoinRequiresAdmin(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	carol := testutil.CreateUser(t, f.db, "carol")

	ch, err := f.channels.Create(asUser(alice), "secret", channels.TypePrivate)
	require.NoError(t, err)

	// Bob cannot join on his own.
	err = f.members.AddMember(asUser(bob), ch.ID, bob)
	assert.True(t, errors.IsPermissionDenied(err))

	// The admin can add him.
	require.NoError(t, f.members.AddMember(asUser(alice), ch.ID, bob))

	// A plain member cannot add others to a private channel.
	err = f.members.AddMember(asUser(bob), ch.ID, carol)
	assert.True(t, errors.IsPermissionDenied(err))
}

func TestPrivateChannelArchivesWhenEmptied(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")

	ch, err := f.channels.Create(asUser(alice), "solo", channels.TypePrivate)
	require.NoError(t, err)

	require.NoError(t, f.members.RemoveMember(asUser(alice), ch.ID, alice))

	got, err := f.chRepo.GetByID(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.True(t, got.IsArchived)
}

func TestAdminSuccessionPromotesEarliestMember(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	carol := testutil.CreateUser(t, f.db, "carol")

	ch, err := f.channels.Create(asUser(alice), "team", channels.TypePublic)
	require.NoError(t, err)
	require.NoError(t, f.members.AddMember(asUser(alice), ch.ID, bob))
	require.NoError(t, f.members.AddMember(asUser(alice), ch.ID, carol))

	require.NoError(t, f.members.RemoveMember(asUser(alice), ch.ID, alice))

	m, err := f.members.GetMember(context.Background(), ch.ID, bob)
	require.NoError(t, err)
	assert.True(t, m.IsAdmin, "earliest remaining member becomes admin")
}

func TestDirectMessageChannelIsCanonical(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")

	first, err := f.channels.GetOrCreateDM(asUser(alice), alice, bob)
	require.NoError(t, err)

	// The peer asking for the same pair gets the same channel.
	second, err := f.channels.GetOrCreateDM(asUser(bob), bob, alice)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	self, err := f.channels.GetOrCreateDM(asUser(alice), alice, alice)
	require.NoError(t, err)
	assert.True(t, self.IsSelfMessage)
}

func TestSendUpdatesChannelSummary(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")

	ch, err := f.channels.Create(asUser(alice), "general", channels.TypePublic)
	require.NoError(t, err)

	m, err := f.messages.Send(asUser(alice), messages.SendInput{
		ChannelID: ch.ID,
		Text:      "<p>hello world</p>",
	})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "hello world", m.Content)

	got, err := f.chRepo.GetByID(context.Background(), ch.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageID)
	assert.Equal(t, m.ID, *got.LastMessageID)
}

func TestEmptyProjectionSendIsNoOp(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")

	ch, err := f.channels.Create(asUser(alice), "general", channels.TypePublic)
	require.NoError(t, err)

	m, err := f.messages.Send(asUser(alice), messages.SendInput{
		ChannelID: ch.ID,
		Text:      "<li><br></li>",
	})
	require.NoError(t, err)
	assert.Nil(t, m)

	got, err := f.chRepo.GetByID(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastMessageID)
}

func TestEditMarksMessageEdited(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")

	ch, err := f.channels.Create(asUser(alice), "general", channels.TypePublic)
	require.NoError(t, err)
	m, err := f.messages.Send(asUser(alice), messages.SendInput{ChannelID: ch.ID, Text: "draft"})
	require.NoError(t, err)

	edited, err := f.messages.Edit(asUser(alice), m.ID, "final", nil)
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, "final", edited.Content)

	// Editing to the same text changes nothing.
	same, err := f.messages.Edit(asUser(alice), m.ID, "final", nil)
	require.NoError(t, err)
	assert.Equal(t, edited.ModifiedAt, same.ModifiedAt)
}

func TestReplyCarriesFrozenSnapshot(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")

	ch, err := f.channels.Create(asUser(alice), "general", channels.TypePublic)
	require.NoError(t, err)
	require.NoError(t, f.members.AddMember(asUser(bob), ch.ID, bob))

	original, err := f.messages.Send(asUser(alice), messages.SendInput{ChannelID: ch.ID, Text: "original"})
	require.NoError(t, err)

	reply, err := f.messages.Send(asUser(bob), messages.SendInput{
		ChannelID:       ch.ID,
		Text:            "reply",
		IsReply:         true,
		LinkedMessageID: &original.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.RepliedMessageDetails)
	assert.Equal(t, "original", reply.RepliedMessageDetails.Content)
	assert.Equal(t, alice, reply.RepliedMessageDetails.OwnerID)

	// Editing the original does not rewrite the snapshot.
	_, err = f.messages.Edit(asUser(alice), original.ID, "rewritten", nil)
	require.NoError(t, err)
	got, err := f.messages.Get(asUser(bob), reply.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.RepliedMessageDetails.Content)
}

func TestDeleteLeavesSummaryStale(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")

	ch, err := f.channels.Create(asUser(alice), "general", channels.TypePublic)
	require.NoError(t, err)
	m, err := f.messages.Send(asUser(alice), messages.SendInput{ChannelID: ch.ID, Text: "bye"})
	require.NoError(t, err)

	require.NoError(t, f.messages.Delete(asUser(alice), m.ID))

	_, err = f.messages.Get(asUser(alice), m.ID)
	assert.True(t, errors.IsNotFound(err))

	got, err := f.chRepo.GetByID(context.Background(), ch.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageID)
	assert.Equal(t, m.ID, *got.LastMessageID)
}

func TestReactionToggleAggregates(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")

	ch, err := f.channels.Create(asUser(alice), "general", channels.TypePublic)
	require.NoError(t, err)
	require.NoError(t, f.members.AddMember(asUser(bob), ch.ID, bob))
	m, err := f.messages.Send(asUser(alice), messages.SendInput{ChannelID: ch.ID, Text: "react to me"})
	require.NoError(t, err)

	agg, err := f.reacts.Toggle(asUser(alice), m.ID, "👍")
	require.NoError(t, err)
	// The aggregate is keyed by the emoji itself; escaping only names the
	// identity column.
	key := "👍"
	require.Contains(t, agg, key)
	assert.Equal(t, 1, agg[key].Count)

	agg, err = f.reacts.Toggle(asUser(bob), m.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, 2, agg[key].Count)
	assert.Len(t, agg[key].Users, 2)

	// Toggling again removes alice's reaction.
	agg, err = f.reacts.Toggle(asUser(alice), m.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, 1, agg[key].Count)
	assert.Equal(t, []uuid.UUID{bob}, agg[key].Users)
}

func TestUnreadCountsPerChannel(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")

	ch, err := f.channels.Create(asUser(alice), "general", channels.TypePublic)
	require.NoError(t, err)
	require.NoError(t, f.members.AddMember(asUser(bob), ch.ID, bob))

	for i := 0; i < 3; i++ {
		_, err := f.messages.Send(asUser(alice), messages.SendInput{ChannelID: ch.ID, Text: "ping"})
		require.NoError(t, err)
	}

	count, err := f.unread.ChannelCount(asUser(bob), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Visiting resets the counter.
	require.NoError(t, f.members.TrackVisit(asUser(bob), ch.ID))
	count, err = f.unread.ChannelCount(asUser(bob), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPollVoteLifecycle(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")

	poll, err := f.polls.Create(asUser(alice), "lunch?", []string{"pizza", "sushi"}, false, false)
	require.NoError(t, err)
	require.Len(t, poll.Options, 2)

	require.NoError(t, f.polls.Vote(asUser(alice), poll.ID, poll.Options[0].ID))
	require.NoError(t, f.polls.Vote(asUser(bob), poll.ID, poll.Options[1].ID))

	// A single-choice revote moves the vote instead of stacking it.
	require.NoError(t, f.polls.Vote(asUser(alice), poll.ID, poll.Options[1].ID))

	got, voted, err := f.polls.Get(asUser(alice), poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalVotes)
	assert.Equal(t, []uuid.UUID{got.Options[1].ID}, voted)
	assert.Equal(t, 0, got.Options[0].Votes)
	assert.Equal(t, 2, got.Options[1].Votes)

	require.NoError(t, f.polls.Close(asUser(alice), poll.ID))
	err = f.polls.Vote(asUser(bob), poll.ID, poll.Options[0].ID)
	assert.True(t, errors.IsValidation(err))
}

func TestBotPostsWithoutMembershipChecksOnSend(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")

	b, err := f.bots.Create(asUser(alice), "Reminder", "reminder-bot", "sends reminders")
	require.NoError(t, err)

	ch, err := f.channels.Create(asUser(alice), "general", channels.TypePrivate)
	require.NoError(t, err)
	require.NoError(t, f.bots.AddToChannel(asUser(alice), b.ID, ch.ID))

	m, err := f.bots.SendMessage(context.Background(), b.ID, ch.ID, "time to stand up", nil)
	require.NoError(t, err)
	assert.True(t, m.IsBotMessage)
	require.NotNil(t, m.BotID)

	last, err := f.bots.GetLastMessage(context.Background(), b.ID, &ch.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, last.ID)

	history, err := f.bots.GetPreviousMessages(context.Background(), b.ID, ch.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestOpenChannelMaterializesMembershipOnVisit(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")

	ch, err := f.channels.Create(asUser(alice), "town-square", channels.TypeOpen)
	require.NoError(t, err)

	isMember, err := f.members.IsMember(context.Background(), ch.ID, bob)
	require.NoError(t, err)
	assert.False(t, isMember)

	require.NoError(t, f.members.TrackVisit(asUser(bob), ch.ID))

	isMember, err = f.members.IsMember(context.Background(), ch.ID, bob)
	require.NoError(t, err)
	assert.True(t, isMember)
}

func TestChannelListHidesForeignDMs(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	carol := testutil.CreateUser(t, f.db, "carol")

	dm, err := f.channels.GetOrCreateDM(asUser(alice), alice, bob)
	require.NoError(t, err)

	listed := func(userID uuid.UUID) []uuid.UUID {
		t.Helper()
		list, err := f.channels.ListForUser(asUser(userID), false)
		require.NoError(t, err)
		ids := make([]uuid.UUID, 0, len(list))
		for _, c := range list {
			ids = append(ids, c.ID)
		}
		return ids
	}

	assert.Contains(t, listed(alice), dm.ID)
	assert.Contains(t, listed(bob), dm.ID)
	assert.NotContains(t, listed(carol), dm.ID)
}

func TestChannelListArchiveFilterKeepsPrivateHidden(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	carol := testutil.CreateUser(t, f.db, "carol")

	secret, err := f.channels.Create(asUser(alice), "secret", channels.TypePrivate)
	require.NoError(t, err)
	old, err := f.channels.Create(asUser(alice), "old-times", channels.TypePublic)
	require.NoError(t, err)
	require.NoError(t, f.channels.Archive(asUser(alice), old.ID))

	list, err := f.channels.ListForUser(asUser(carol), true)
	require.NoError(t, err)
	for _, c := range list {
		assert.NotEqual(t, secret.ID, c.ID)
		assert.NotEqual(t, old.ID, c.ID)
	}

	list, err = f.channels.ListForUser(asUser(alice), true)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, secret.ID)
	assert.NotContains(t, ids, old.ID)
}

func TestReplyToMessageInAnotherChannelRejected(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")

	home, err := f.channels.Create(asUser(alice), "home", channels.TypePublic)
	require.NoError(t, err)
	away, err := f.channels.Create(asUser(alice), "away", channels.TypePublic)
	require.NoError(t, err)

	original, err := f.messages.Send(asUser(alice), messages.SendInput{ChannelID: home.ID, Text: "original"})
	require.NoError(t, err)

	_, err = f.messages.Send(asUser(alice), messages.SendInput{
		ChannelID:       away.ID,
		Text:            "cross-channel reply",
		IsReply:         true,
		LinkedMessageID: &original.ID,
	})
	assert.True(t, errors.IsValidation(err))

	// The rejected reply left nothing behind.
	msgs, err := f.msgRepo.List(context.Background(), away.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestJoinMissingChannelNotFound(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")

	_, err := membership.NewRepository(f.db.Pool).Add(context.Background(), uuid.New(), alice)
	assert.True(t, errors.IsNotFound(err))
}

func TestReactionOnMissingMessageNotFound(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")

	_, _, err := reactions.NewRepository(f.db.Pool).Toggle(context.Background(), 12345, alice, "👍")
	assert.True(t, errors.IsNotFound(err))
}

func TestUnreadCountMissingChannelNotFound(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.db, "alice")

	_, err := f.unread.ChannelCount(asUser(alice), uuid.New())
	assert.True(t, errors.IsNotFound(err))
}
