package utils

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/Jorge523757/DIGITSOFT/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// product prices and stock change often, so they expire
func typeHasExpiration(typeName string) bool {
	expirableTypes := map[string]bool{
		"Product":              true,
		"GeneralConfiguration": true,
		"Brand":                true,
	}
	return expirableTypes[typeName]
}

func redisItemKey[T any](id int) string {
	return GetTypeName[T]() + ":" + fmt.Sprint(id)
}

// store instance, obj should be a pointer
func StoreRedis[T any](obj any, id int) error {
	typeName := GetTypeName[T]()
	var duration time.Duration
	if typeHasExpiration(typeName) {
		duration = GetCacheLifespan()
	}
	return config.SetRedisObject(redisItemKey[T](id), obj, duration)
}

// store a list under TypeList or TypeList:suffix
func StoreRedisList[T any](obj any, suffix string) error {
	var duration time.Duration
	if typeHasExpiration(GetTypeName[T]()) {
		duration = GetCacheLifespan()
	}
	return config.SetRedisObject(redisListKey[T](suffix), obj, duration)
}

func redisListKey[T any](suffix string) string {
	if suffix == "" {
		return GetTypeName[T]() + "List"
	}
	return GetTypeName[T]() + "List:" + suffix
}

// get from redis
// returns nil if does not exist
func RetrieveRedis[T any](id int) (*T, error) {
	var result *T
	exists, err := config.GetRedisObject(redisItemKey[T](id), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

func RetrieveRedisList[T any](suffix string) ([]*T, error) {
	var result []*T
	exists, err := config.GetRedisObject(redisListKey[T](suffix), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

func RemoveRedisList[T any](suffix string) error {
	return config.RemoveRedisKey(redisListKey[T](suffix))
}

// remove an instance, Type:$id
func RemoveRedisItem[T any](id int) error {
	return config.RemoveRedisKey(redisItemKey[T](id))
}

// clear the instance and the unfiltered list
func RemoveRedisBoth[T any](id int) error {
	if err := RemoveRedisItem[T](id); err != nil {
		return err
	}
	return RemoveRedisList[T]("")
}
