//go:build windows

package webgpu

// fillWorkgroupSize is the workgroup width of the fill shader.
const fillWorkgroupSize = 256

// fillBufferShader writes a repeating 16-byte pattern over a word range of a
// storage buffer. The whole buffer is bound; first_word locates the range so
// the binding offset can stay zero regardless of view alignment.
const fillBufferShader = `
struct FillParams {
    first_word: u32,
    word_count: u32,
    _pad0: u32,
    _pad1: u32,
    pattern: vec4<u32>,
}

@group(0) @binding(0) var<storage, read_write> dst: array<u32>;
@group(0) @binding(1) var<uniform> params: FillParams;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i >= params.word_count) {
        return;
    }
    dst[params.first_word + i] = params.pattern[i % 4u];
}
`
