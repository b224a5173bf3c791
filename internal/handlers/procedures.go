package handlers

import (
	"context"
	"encoding/json"

	"blog/internal/auth"
	"blog/internal/posts"
)

type procedureFunc func(ctx context.Context, rc *RequestContext, input json.RawMessage) (any, error)

type authedProcedureFunc func(ctx context.Context, ac *AuthedContext, input json.RawMessage) (any, error)

type procedure struct {
	call procedureFunc
	// query procedures have no side effects and may be called with GET.
	query bool
}

// protected runs RequireUser before next.
func protected(next authedProcedureFunc) procedureFunc {
	return func(ctx context.Context, rc *RequestContext, input json.RawMessage) (any, error) {
		ac, err := RequireUser(rc)
		if err != nil {
			return nil, err
		}
		return next(ctx, ac, input)
	}
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
}

type idInput struct {
	ID string `json:"id" validate:"required"`
}

type updateInput struct {
	ID string `json:"id" validate:"required"`
	posts.UpdateInput
}

type success struct {
	Success bool `json:"success"`
}

func (h *Handler) procedures() map[string]procedure {
	return map[string]procedure{
		"user.health":   {call: h.health, query: true},
		"user.register": {call: h.register},
		"user.login":    {call: h.login},
		"user.logout":   {call: protected(h.logout)},
		"user.me":       {call: protected(h.me), query: true},
		"post.list":     {call: h.listPosts, query: true},
		"post.byId":     {call: h.postByID, query: true},
		"post.create":   {call: protected(h.createPost)},
		"post.update":   {call: protected(h.updatePost)},
		"post.delete":   {call: protected(h.deletePost)},
	}
}

func (h *Handler) health(context.Context, *RequestContext, json.RawMessage) (any, error) {
	return h.healthStatus(), nil
}

func (h *Handler) register(ctx context.Context, _ *RequestContext, raw json.RawMessage) (any, error) {
	in, err := decodeInput[auth.RegisterInput](raw)
	if err != nil {
		return nil, err
	}
	user, err := h.auth.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": user}, nil
}

func (h *Handler) login(ctx context.Context, rc *RequestContext, raw json.RawMessage) (any, error) {
	in, err := decodeInput[loginInput](raw)
	if err != nil {
		return nil, err
	}
	sess, user, err := h.auth.Login(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	if err := rc.Event.SetSession(sess); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "user": user}, nil
}

func (h *Handler) logout(ctx context.Context, ac *AuthedContext, _ json.RawMessage) (any, error) {
	if err := h.auth.Logout(ctx, ac.Session.ID); err != nil {
		return nil, err
	}
	ac.Event.ClearSession()
	return success{Success: true}, nil
}

func (h *Handler) me(_ context.Context, ac *AuthedContext, _ json.RawMessage) (any, error) {
	return ac.User, nil
}

func (h *Handler) listPosts(ctx context.Context, rc *RequestContext, raw json.RawMessage) (any, error) {
	in, err := decodeInput[posts.ListInput](raw)
	if err != nil {
		return nil, err
	}
	return h.posts.List(ctx, rc.User, in)
}

func (h *Handler) postByID(ctx context.Context, rc *RequestContext, raw json.RawMessage) (any, error) {
	in, err := decodeInput[idInput](raw)
	if err != nil {
		return nil, err
	}
	return h.posts.ByID(ctx, rc.User, in.ID)
}

func (h *Handler) createPost(ctx context.Context, ac *AuthedContext, raw json.RawMessage) (any, error) {
	in, err := decodeInput[posts.CreateInput](raw)
	if err != nil {
		return nil, err
	}
	return h.posts.Create(ctx, ac.User, in)
}

func (h *Handler) updatePost(ctx context.Context, ac *AuthedContext, raw json.RawMessage) (any, error) {
	in, err := decodeInput[updateInput](raw)
	if err != nil {
		return nil, err
	}
	return h.posts.Update(ctx, ac.User, in.ID, in.UpdateInput)
}

func (h *Handler) deletePost(ctx context.Context, ac *AuthedContext, raw json.RawMessage) (any, error) {
	in, err := decodeInput[idInput](raw)
	if err != nil {
		return nil, err
	}
	if err := h.posts.Delete(ctx, ac.User, in.ID); err != nil {
		return nil, err
	}
	return success{Success: true}, nil
}
