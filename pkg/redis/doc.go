// Package redis connects to Redis with go-redis/v9 for the redis media
// record store.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	records := redisstore.New(client, redisstore.WithPrefix(cfg.KeyPrefix))
package redis
