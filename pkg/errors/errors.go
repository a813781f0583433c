package errors

import "errors"

// ErrLeaseNotHeld 租约不属于当前持有者（已过期被回收或已释放）
var ErrLeaseNotHeld = errors.New("租约未被当前实例持有")
