package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Healthcheck returns a probe for the server backing the shared flag cache and
// the invalidation bus. The probe fails unless PING answers PONG.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		reply, err := client.Ping(ctx).Result()
		switch {
		case err != nil:
			return errors.Join(ErrHealthcheckFailed, err)
		case reply != "PONG":
			return errors.Join(ErrHealthcheckFailed, fmt.Errorf("unexpected ping reply %q", reply))
		}
		return nil
	}
}
