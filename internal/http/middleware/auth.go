package middleware

import (
	"github.com/gofiber/fiber/v2"

	"thesiscert/internal/auth"
	"thesiscert/internal/model"
)

// ActorLocalKey is the locals key holding the authenticated model.Actor.
const ActorLocalKey = "actor"

// TokenParser turns a bearer token into an actor.
type TokenParser interface {
	Parse(tok string) (model.Actor, error)
}

// Authenticate requires a valid bearer token. The actor is stored in locals and
// in the user context so the service layer can read it with auth.ActorFrom.
func Authenticate(tokens TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		actor, err := tokens.Parse(tok)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(ActorLocalKey, actor)
		c.SetUserContext(auth.WithActor(c.UserContext(), actor))
		return c.Next()
	}
}

// Actor returns the actor stored by Authenticate.
func Actor(c *fiber.Ctx) (model.Actor, bool) {
	return actorFromLocals(c)
}

func actorFromLocals(c *fiber.Ctx) (model.Actor, bool) {
	a, ok := c.Locals(ActorLocalKey).(model.Actor)
	return a, ok
}
