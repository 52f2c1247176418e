package redis

// Key layout, relative to the configured prefix:
//
//	job:{id}        Hash with the record fields
//	channel:{name}  Sorted Set of job ids, score = pushed_at in ms
//	channels        Set of channel names
//	job_seq         counter for ids assigned by Put
//	failures        Pub/Sub channel carrying FailureEvent JSON

// DefaultKeyPrefix is used when WithKeyPrefix is not given.
const DefaultKeyPrefix = "vigil:"

type keys struct{ prefix string }

func (k keys) job(id string) string       { return k.prefix + "job:" + id }
func (k keys) channel(name string) string { return k.prefix + "channel:" + name }
func (k keys) channels() string           { return k.prefix + "channels" }
func (k keys) sequence() string           { return k.prefix + "job_seq" }
func (k keys) failures() string           { return k.prefix + "failures" }
