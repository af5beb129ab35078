// Package mongo connects to MongoDB with the official v2 driver. It backs
// the mongodb media record store.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	records := mongodb.New(db)
package mongo
