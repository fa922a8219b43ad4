package storage

import "strings"

// ProtocolFile is the protocol tag for local filesystem paths.
const ProtocolFile = "file"

// PartitionPath splits a unified path into its (protocol, bucket, key)
// triple. Paths without a protocol tag before the first slash are local:
// the protocol defaults to "file", the bucket is empty and the key is the
// path unchanged.
func PartitionPath(path string) (protocol, bucket, key string) {
	idx := strings.Index(path, ":")
	if idx < 0 || strings.Contains(path[:idx], "/") {
		return ProtocolFile, "", path
	}

	protocol = path[:idx]
	rest := strings.TrimLeft(path[idx+1:], "/")
	bucket, key, _ = strings.Cut(rest, "/")
	return protocol, bucket, key
}

// BuildPath is the inverse of PartitionPath for every protocol.
func BuildPath(protocol, bucket, key string) string {
	if protocol == ProtocolFile {
		return key
	}
	return protocol + "://" + bucket + "/" + key
}

// JoinKey joins a backend key with a relative path, treating both as
// slash-separated. An empty relative path returns the key unchanged, minus
// any trailing slash.
func JoinKey(key, rel string) string {
	key = strings.TrimSuffix(key, "/")
	if rel == "" {
		return key
	}
	if key == "" {
		return rel
	}
	return key + "/" + rel
}
