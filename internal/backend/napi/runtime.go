package napi

const runtimeSource = `#ifndef CBINDER_NAPI_H_
#define CBINDER_NAPI_H_

#include <node_api.h>
#include <cstdint>
#include <vector>
#include "CBinder.h"

namespace cbinder {

namespace detail {

inline int64_t ToInt64(napi_env env, napi_value value)
{
    napi_valuetype type;
    napi_typeof(env, value, &type);
    int64_t ret = 0;
    if (type == napi_bigint)
    {
        bool lossless;
        napi_get_value_bigint_int64(env, value, &ret, &lossless);
        return ret;
    }
    napi_get_value_int64(env, value, &ret);
    return ret;
}

} // namespace detail

template <typename T>
inline T FromJs(napi_env env, napi_value value)
{
    return static_cast<T>(detail::ToInt64(env, value));
}

template <>
inline bool FromJs<bool>(napi_env env, napi_value value)
{
    bool ret = false;
    napi_get_value_bool(env, value, &ret);
    return ret;
}

template <>
inline double FromJs<double>(napi_env env, napi_value value)
{
    double ret = 0;
    napi_get_value_double(env, value, &ret);
    return ret;
}

template <>
inline float FromJs<float>(napi_env env, napi_value value)
{
    return static_cast<float>(FromJs<double>(env, value));
}

template <>
inline uint64_t FromJs<uint64_t>(napi_env env, napi_value value)
{
    uint64_t ret = 0;
    bool lossless;
    napi_get_value_bigint_uint64(env, value, &ret, &lossless);
    return ret;
}

template <>
inline void* FromJs<void*>(napi_env env, napi_value value)
{
    return reinterpret_cast<void*>(static_cast<uintptr_t>(FromJs<uint64_t>(env, value)));
}

inline napi_value ToJs(napi_env env, bool value)
{
    napi_value ret;
    napi_get_boolean(env, value, &ret);
    return ret;
}

inline napi_value ToJs(napi_env env, int32_t value)
{
    napi_value ret;
    napi_create_int32(env, value, &ret);
    return ret;
}

inline napi_value ToJs(napi_env env, uint32_t value)
{
    napi_value ret;
    napi_create_uint32(env, value, &ret);
    return ret;
}

inline napi_value ToJs(napi_env env, int64_t value)
{
    napi_value ret;
    napi_create_bigint_int64(env, value, &ret);
    return ret;
}

inline napi_value ToJs(napi_env env, uint64_t value)
{
    napi_value ret;
    napi_create_bigint_uint64(env, value, &ret);
    return ret;
}

inline napi_value ToJs(napi_env env, double value)
{
    napi_value ret;
    napi_create_double(env, value, &ret);
    return ret;
}

inline napi_value ToJs(napi_env env, cbstring value)
{
    napi_value ret;
    napi_create_string_utf8(env, value, NAPI_AUTO_LENGTH, &ret);
    return ret;
}

inline napi_value ToJs(napi_env env, void* value)
{
    return ToJs(env, static_cast<uint64_t>(reinterpret_cast<uintptr_t>(value)));
}

class JsString
{
public:
    JsString(napi_env env, napi_value value)
    {
        size_t length = 0;
        napi_get_value_string_utf8(env, value, nullptr, 0, &length);
        chars_.resize(length + 1);
        napi_get_value_string_utf8(env, value, chars_.data(), chars_.size(), &length);
    }
    operator cbstring() const { return chars_.data(); }
private:
    std::vector<char> chars_;
};

template <typename T>
class JsBox;

// JsBox reads the value property of a Box object and writes it back on Commit.
template <typename T>
class JsBox<T*>
{
public:
    JsBox(napi_env env, napi_value box)
        : env_(env), box_(box), value_()
    {
        napi_value current;
        if (napi_get_named_property(env_, box_, "value", &current) == napi_ok)
            value_ = FromJs<T>(env_, current);
    }
    operator T*() { return &value_; }
    void Commit()
    {
        napi_set_named_property(env_, box_, "value", ToJs(env_, value_));
    }
private:
    napi_env env_;
    napi_value box_;
    T value_;
};

class JsArray
{
public:
    JsArray(napi_env env, napi_value value)
        : array_()
    {
        bool typed = false;
        napi_is_typedarray(env, value, &typed);
        if (!typed)
            return;
        napi_typedarray_type type;
        napi_value buffer;
        size_t offset;
        napi_get_typedarray_info(env, value, &type, &array_.length, &array_.data, &buffer, &offset);
    }
    operator cbarray() const { return array_; }
private:
    cbarray array_;
};

inline void* Reference(napi_env env, napi_value value)
{
    napi_ref ref = nullptr;
    napi_create_reference(env, value, 1, &ref);
    return ref;
}

} // namespace cbinder

#endif // CBINDER_NAPI_H_
`
