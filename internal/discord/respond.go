package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// responder binds command replies to the originating interaction. All
// replies are ephemeral; Edit rewrites the initial response in place so a
// long batch can stream progress into one message.
type responder struct {
	s       *discordgo.Session
	i       *discordgo.Interaction
	pending *confirms
	timeout time.Duration
	acked   bool
}

func (r *responder) Reply(ctx context.Context, text string) error {
	if r.acked {
		_, err := r.s.FollowupMessageCreate(r.i, true, &discordgo.WebhookParams{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		}, discordgo.WithContext(ctx))
		return err
	}
	r.acked = true
	return r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
}

func (r *responder) Edit(ctx context.Context, text string) error {
	if !r.acked {
		return r.Reply(ctx, text)
	}
	_, err := r.s.InteractionResponseEdit(r.i, &discordgo.WebhookEdit{
		Content: &text,
	}, discordgo.WithContext(ctx))
	return err
}

// Confirm shows the prompt with yes/no buttons and blocks until the operator
// clicks or the timeout passes. Timeout counts as declined.
func (r *responder) Confirm(ctx context.Context, prompt string) (bool, error) {
	nonce := r.i.ID
	wait := r.pending.register(nonce)
	defer r.pending.drop(nonce)

	buttons := []discordgo.MessageComponent{discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Confirm", Style: discordgo.SuccessButton, CustomID: fmt.Sprintf("confirm:yes:%s", nonce)},
			discordgo.Button{Label: "Cancel", Style: discordgo.SecondaryButton, CustomID: fmt.Sprintf("confirm:no:%s", nonce)},
		},
	}}

	var err error
	if r.acked {
		_, err = r.s.InteractionResponseEdit(r.i, &discordgo.WebhookEdit{
			Content:    &prompt,
			Components: &buttons,
		}, discordgo.WithContext(ctx))
	} else {
		r.acked = true
		err = r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:    prompt,
				Flags:      discordgo.MessageFlagsEphemeral,
				Components: buttons,
			},
		}, discordgo.WithContext(ctx))
	}
	if err != nil {
		return false, err
	}

	select {
	case ok := <-wait:
		return ok, nil
	case <-time.After(r.timeout):
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
